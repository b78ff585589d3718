package model

type Novel struct {
	ID    int64  `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
	Ctime int64  `json:"ctime" db:"ctime"`
}
