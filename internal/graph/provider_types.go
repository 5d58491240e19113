package graph

// Response shapes of the Graph analytics API. Only the fields we read.

type providerInsightsResponse struct {
	Data []providerMetric `json:"data"`
}

type providerMetric struct {
	Name   string          `json:"name"`
	Period string          `json:"period"`
	Values []providerValue `json:"values"`
}

type providerValue struct {
	Value   int    `json:"value"`
	EndTime string `json:"end_time"`
}

type providerConversationsResponse struct {
	Data []providerConversation `json:"data"`
}

type providerConversation struct {
	ID       string `json:"id"`
	Messages struct {
		Data []struct {
			CreatedTime string `json:"created_time"`
		} `json:"data"`
	} `json:"messages"`
}

type providerErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}
