package model

// Mood is a label from the closed set used to key the recommendation catalog.
type Mood string

const (
	MoodHappy    Mood = "Happy"
	MoodSad      Mood = "Sad"
	MoodRomantic Mood = "Romantic"
	MoodStressed Mood = "Stressed"
	MoodTired    Mood = "Tired"
	MoodAngry    Mood = "Angry"
)

// Moods returns the mood labels in display order.
func Moods() []Mood {
	return []Mood{MoodHappy, MoodSad, MoodRomantic, MoodStressed, MoodTired, MoodAngry}
}

// Valid reports whether m is one of the known labels. Matching is exact.
func (m Mood) Valid() bool {
	for _, known := range Moods() {
		if m == known {
			return true
		}
	}
	return false
}

// Song is a static catalog entry.
type Song struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Link string `json:"link"`
	Mood Mood   `json:"mood"`
}

// Activity is a static suggestion for a mood.
type Activity struct {
	ID   int64  `json:"id"`
	Mood Mood   `json:"mood"`
	Text string `json:"activity"`
}
