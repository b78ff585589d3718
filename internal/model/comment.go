package model

// Comment ids come from one store-wide sequence, so they double as the
// summary watermark unit.
type Comment struct {
	ID      int64  `json:"id" db:"id"`
	NovelID int64  `json:"novel_id" db:"novel_id"`
	UserID  int64  `json:"user_id" db:"user_id"`
	Content string `json:"content" db:"content"`
	Ctime   int64  `json:"ctime" db:"ctime"`
}
