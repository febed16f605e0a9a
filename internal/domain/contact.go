package domain

// ContactIdentity is the synthetic address used as the join key between a chat user and a
// ticket-system contact.
type ContactIdentity string

// Contact is a ticket-system contact record. The bridge only reads and creates contacts.
type Contact struct {
	ID        string          `json:"id"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Email     ContactIdentity `json:"email"`
}
