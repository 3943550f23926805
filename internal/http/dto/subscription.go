package dto

type CreateSubscriptionRequest struct {
	URL       string `json:"url" binding:"required,url"`
	Kind      string `json:"kind"`
	NodeLabel string `json:"node_label"`
}
