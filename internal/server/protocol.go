package server

import "serreclub/internal/club"

type LoginRequest struct {
	Username club.Text `json:"username"`
	Password club.Text `json:"password"`
}

type LoginResponse struct {
	Success bool              `json:"success"`
	User    *club.LoginResult `json:"user"`
}

type SyncPopulationRequest struct {
	MemberUsername club.Text                       `json:"memberUsername"`
	Entries        club.List[club.PopulationInput] `json:"entries"`
}

// ActorRequest names the member acting on an annonce.
type ActorRequest struct {
	Username club.Text `json:"username"`
	Role     club.Text `json:"role"`
}

type AnnonceResponse struct {
	Success bool          `json:"success"`
	Annonce *club.Annonce `json:"annonce"`
}

type NotesRequest struct {
	Notes any `json:"notes"`
}

type BacsRequest struct {
	Bacs        club.List[club.BacInput] `json:"bacs"`
	Assignments club.AssignmentMap       `json:"assignments"`
}

type FeedRequest struct {
	Items        club.List[club.FeedItemInput] `json:"items"`
	MonthlyUseKg club.Number                   `json:"monthlyUseKg"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
