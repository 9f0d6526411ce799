package espn

type scoreboard struct {
	Events []event `json:"events"`
}

type event struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Name         string        `json:"name"`
	Competitions []competition `json:"competitions"`
}

type competition struct {
	ID          string       `json:"id"`
	Date        string       `json:"date"`
	Status      status       `json:"status"`
	Competitors []competitor `json:"competitors"`
	Odds        []odds       `json:"odds"`
}

type status struct {
	Type statusType `json:"type"`
}

type statusType struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Completed bool   `json:"completed"`
}

type competitor struct {
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
	Team     team   `json:"team"`
}

type team struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Abbreviation string `json:"abbreviation"`
}

type odds struct {
	Provider     oddsProvider `json:"provider"`
	Details      string       `json:"details"`
	Spread       *float64     `json:"spread"`
	OverUnder    *float64     `json:"overUnder"`
	OverOdds     *float64     `json:"overOdds"`
	UnderOdds    *float64     `json:"underOdds"`
	HomeTeamOdds teamOdds     `json:"homeTeamOdds"`
	AwayTeamOdds teamOdds     `json:"awayTeamOdds"`
}

type oddsProvider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type teamOdds struct {
	MoneyLine  *float64 `json:"moneyLine"`
	SpreadOdds *float64 `json:"spreadOdds"`
}
