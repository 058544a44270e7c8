package redis

import (
	"fmt"
	"strconv"
)

func (r repo) getRoomKey(roomID string) string {
	return roomPrefix + ":" + roomID
}

// getPairKey prefixes the therapist id with its length, ids may contain ':'.
func (r repo) getPairKey(therapistID, patientID string) string {
	return fmt.Sprintf("%s:pair:%d:%s:%s", roomPrefix, len(therapistID), therapistID, patientID)
}

func (r repo) getPatientRoomKey(patientID string) string {
	return patientPrefix + ":" + patientID + ":" + roomPrefix
}

func (r repo) fieldToInt64(field string) int64 {
	i, _ := strconv.ParseInt(field, 10, 64)
	return i
}
