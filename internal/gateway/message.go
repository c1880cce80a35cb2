package gateway

// Message roles understood by the text-generation service.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single role-tagged chat message sent to the
// text-generation service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
