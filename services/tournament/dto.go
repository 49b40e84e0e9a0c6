package tournament

type Stats struct {
	TournamentID      string `json:"tournamentId"`
	TournamentName    string `json:"tournamentName"`
	Participants      int    `json:"participants"`
	SignedIn          int    `json:"signedIn"`
	Events            int    `json:"events"`
	PublishedEvents   int    `json:"publishedEvents"`
	MatchUps          int    `json:"matchUps"`
	ScheduledMatchUps int    `json:"scheduledMatchUps"`
	CompletedMatchUps int    `json:"completedMatchUps"`
}
