package insights

// TrendPoint is one day of conversation activity. Date is a calendar day in
// YYYY-MM-DD form.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// SentimentBucket is the conversation count for one sentiment rank (1..5).
type SentimentBucket struct {
	Rank  int `json:"rank"`
	Count int `json:"count"`
}

// Payload is the full insights document served to the dashboard.
type Payload struct {
	TotalConversations    int               `json:"totalConversations"`
	TotalBotMessages      int               `json:"totalBotMessages"`
	AverageResponseTime   float64           `json:"averageResponseTime"`
	CompletionRate        float64           `json:"completionRate"`
	ConversationTrend     []TrendPoint      `json:"conversationTrend"`
	SentimentDistribution []SentimentBucket `json:"sentimentDistribution"`
}

// ZeroSentiment returns the five ranks with zero counts.
func ZeroSentiment() []SentimentBucket {
	buckets := make([]SentimentBucket, 0, 5)
	for rank := 1; rank <= 5; rank++ {
		buckets = append(buckets, SentimentBucket{Rank: rank, Count: 0})
	}
	return buckets
}

// Placeholder returns a schema-valid all-zero payload. It is served while a
// refresh for the same key is under way and no cached value exists yet, so the
// dashboard always has something it can render.
func Placeholder() Payload {
	return Payload{
		ConversationTrend:     []TrendPoint{},
		SentimentDistribution: ZeroSentiment(),
	}
}
