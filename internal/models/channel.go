package models

// Channel - именованный канал с упорядоченным списком постов
type Channel struct {
	Name  string `json:"name"`
	Posts []Post `json:"posts"`
}

// NewChannel создает пустой канал. Posts никогда не nil.
func NewChannel(name string) Channel {
	return Channel{
		Name:  name,
		Posts: []Post{},
	}
}
