package models

// Player is a room member. ID is the connection-scoped identifier.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsHost  bool   `json:"isHost"`
	IsReady bool   `json:"isReady"`
	Score   int    `json:"score"`
	TeamID  string `json:"teamId,omitempty"`
}

// Roster is the ordered member list shared by every variant. Exactly one
// member is host whenever the roster is non-empty.
type Roster struct {
	Players []*Player
}

func (r *Roster) Len() int {
	return len(r.Players)
}

// Add appends p; the first member becomes host.
func (r *Roster) Add(p *Player) {
	p.IsHost = len(r.Players) == 0
	r.Players = append(r.Players, p)
}

func (r *Roster) Find(id string) (*Player, int) {
	for i, p := range r.Players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

func (r *Roster) Has(id string) bool {
	_, i := r.Find(id)
	return i >= 0
}

// Remove deletes the member and hands host to the next remaining player
// when the host left.
func (r *Roster) Remove(id string) (*Player, bool) {
	p, i := r.Find(id)
	if i < 0 {
		return nil, false
	}
	r.Players = append(r.Players[:i], r.Players[i+1:]...)
	if p.IsHost && len(r.Players) > 0 {
		r.Players[0].IsHost = true
	}
	p.IsHost = false
	return p, true
}

func (r *Roster) Host() *Player {
	for _, p := range r.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

func (r *Roster) IsHost(id string) bool {
	h := r.Host()
	return h != nil && h.ID == id
}

func (r *Roster) AllReady() bool {
	for _, p := range r.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func (r *Roster) ResetScores() {
	for _, p := range r.Players {
		p.Score = 0
	}
}

// Snapshot returns value copies safe to hand to serializers.
func (r *Roster) Snapshot() []Player {
	out := make([]Player, len(r.Players))
	for i, p := range r.Players {
		out[i] = *p
	}
	return out
}

// Team is a trivia team. Members are player ids in join order.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Score   int      `json:"score"`
	Genres  []string `json:"genresGuessed"`
}

func (t *Team) HasMember(id string) bool {
	for _, m := range t.Members {
		if m == id {
			return true
		}
	}
	return false
}

func (t *Team) RemoveMember(id string) bool {
	for i, m := range t.Members {
		if m == id {
			t.Members = append(t.Members[:i], t.Members[i+1:]...)
			return true
		}
	}
	return false
}

// AddGenre credits a genre once; it reports whether the genre was new.
func (t *Team) AddGenre(genre string) bool {
	for _, g := range t.Genres {
		if g == genre {
			return false
		}
	}
	t.Genres = append(t.Genres, genre)
	return true
}
