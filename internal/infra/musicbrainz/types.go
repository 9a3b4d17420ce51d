package musicbrainz

// MusicBrainz API response types. Only fields that are kept are decoded.

type artistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type recordingSearchResponse struct {
	Recordings []struct {
		ID             string         `json:"id"`
		Title          string         `json:"title"`
		Disambiguation string         `json:"disambiguation"`
		ISRCs          []string       `json:"isrcs"`
		ArtistCredit   []artistCredit `json:"artist-credit"`
	} `json:"recordings"`
}

type recordingResponse struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ISRCs        []string       `json:"isrcs"`
	Rating       struct {
		Value *float64 `json:"value"`
	} `json:"rating"`
	Tags     []tag `json:"tags"`
	Releases []struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		Status        string `json:"status"`
		Date          string `json:"date"`
		Country       string `json:"country"`
		ReleaseEvents []struct {
			Date string `json:"date"`
		} `json:"release-events"`
	} `json:"releases"`
}

type tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type artistResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Gender         string   `json:"gender"`
	Country        string   `json:"country"`
	Disambiguation string   `json:"disambiguation"`
	IPIs           []string `json:"ipis"`
	ISNIs          []string `json:"isnis"`
	LifeSpan       struct {
		Begin string `json:"begin"`
		Ended bool   `json:"ended"`
	} `json:"life-span"`
	Tags     []tag `json:"tags"`
	Releases []struct {
		Title string `json:"title"`
	} `json:"releases"`
	Relations []struct {
		Type string `json:"type"`
		URL  struct {
			Resource string `json:"resource"`
		} `json:"url"`
	} `json:"relations"`
}

type releaseResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Country string `json:"country"`
	Media   []struct {
		Tracks []struct {
			Title     string `json:"title"`
			Recording struct {
				Title string `json:"title"`
			} `json:"recording"`
		} `json:"tracks"`
	} `json:"media"`
}

type artistSearchResponse struct {
	Artists []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artists"`
}

type releaseSearchResponse struct {
	Releases []struct {
		ID           string         `json:"id"`
		Title        string         `json:"title"`
		ArtistCredit []artistCredit `json:"artist-credit"`
	} `json:"releases"`
}
