package repo

// DeleteResult is the structured result returned by Delete. Deleting an
// id that is not stored is a no-op reported as Found=false.
type DeleteResult struct {
	ID      string `json:"id"`
	Found   bool   `json:"found"`
	Deleted bool   `json:"deleted"`
}
