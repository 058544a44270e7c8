package room

type EnsureRoomParams struct {
	TherapistID string
	PatientID   string
	CreatedAt   int64
}
