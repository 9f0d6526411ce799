package theoddsapi

// oddsEvent is one element of GET /v4/sports/{sport}/odds.
type oddsEvent struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime string      `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []bookmaker `json:"bookmakers"`
}

type bookmaker struct {
	Key        string   `json:"key"`
	Title      string   `json:"title"`
	LastUpdate string   `json:"last_update"`
	Markets    []market `json:"markets"`
}

type market struct {
	Key      string    `json:"key"`
	Outcomes []outcome `json:"outcomes"`
}

// Price and Point stay pointers: a missing field and a zero are different
// things for a pick'em spread.
type outcome struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
	Point *float64 `json:"point"`
}

// scoreEvent is one element of GET /v4/sports/{sport}/scores.
type scoreEvent struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime string      `json:"commence_time"`
	Completed    bool        `json:"completed"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Scores       []teamScore `json:"scores"`
	LastUpdate   *string     `json:"last_update"`
}

type teamScore struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}
