package domain

// PlaylistRoom is a collaborative, ordered playlist (MPE). Unlike
// listening rooms, a user may be a member of many playlist rooms at
// once and membership does not touch User.ActiveRoomID.
type PlaylistRoom struct {
	ID        RoomID
	Name      RoomName
	CreatorID UserID
	IsOpen    bool
}

// PlaylistTrack belongs to a playlist room. Tracks are ordered by
// Position (0-based, dense).
type PlaylistTrack struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	Duration   int64  `json:"duration"`
	Position   int    `json:"position"`
}
