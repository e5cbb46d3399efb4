package domain

// Scene is a recorded crime scene. ID is empty until the repository accepts it.
type Scene struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CaseNumber string    `json:"case_number"`
	Perimeter  Perimeter `json:"perimeter_geojson"`
	CreatedBy  string    `json:"created_by"`
}

// NewScene is the insert payload sent to the scene repository.
// CreatedBy always comes from the session, never from user input.
type NewScene struct {
	Title      string    `json:"title"`
	CaseNumber string    `json:"case_number"`
	Perimeter  Perimeter `json:"perimeter_geojson"`
	CreatedBy  string    `json:"created_by"`
}
