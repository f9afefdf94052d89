package domain

type User struct {
	ID    int64  `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
	Hash  string `db:"password_hash"`
}

// Identity is the already-authenticated caller handed to every core operation.
type Identity struct {
	UserID        int64
	Authenticated bool
	Admin         bool
}

func Anonymous() Identity { return Identity{} }

func (i Identity) Is(userID int64) bool {
	return i.Authenticated && i.UserID == userID
}
