package model

// Option is a candidate choice proposed by a participant within a room.
//
// Votes starts at zero and only ever increments, and only while the owning
// room is in the voting phase. Options can be added or removed only while
// the room is still in the lobby, and removed only by their own creator.
type Option struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	Text      string `json:"text"`
	CreatedBy string `json:"createdBy"`
	Votes     int    `json:"votes"`
}
