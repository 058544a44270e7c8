package room

type Room struct {
	ID          string `json:"id"`
	TherapistID string `json:"therapist_id"`
	PatientID   string `json:"patient_id"`
	CreatedAt   int64  `json:"created_at"`
}
