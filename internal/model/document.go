package model

type Document struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
	Ctime    int64  `json:"ctime"`
}
