// internal/workers/deck/record-swipe/models.go
package recordswipe

type Input struct {
	UserID string `json:"userId"`
	PetID  string `json:"petId"`
	Liked  bool   `json:"liked"`
}

type Output struct {
	Recorded bool   `json:"recorded"`
	UserID   string `json:"userId"`
	PetID    string `json:"petId"`
	Liked    bool   `json:"liked"`
}
