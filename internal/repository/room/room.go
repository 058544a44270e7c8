package room

// Room pairs one therapist with one patient. Its ID is the websocket room id.
type Room struct {
	ID          string `json:"id"`
	TherapistID string `json:"therapist_id"`
	PatientID   string `json:"patient_id"`
	CreatedAt   int64  `json:"created_at"`
}

type EnsureRoomResult struct {
	Room    Room
	Created bool
}
