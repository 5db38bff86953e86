package models

import "time"

// Post - сообщение в канале
type Post struct {
	Channel string    `json:"channel"` // имя канала, которому принадлежит пост
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// NewPost создает пост с указанным временем создания
func NewPost(channel, message string, date time.Time) Post {
	return Post{
		Channel: channel,
		Message: message,
		Date:    date,
	}
}
