package domain

import "time"

// ShopSnapshot is one immutable, fully fetched view of a shop as of one poll
// cycle. A new cycle always produces a new snapshot, never mutates an old one.
type ShopSnapshot struct {
	ShopID        int64                `json:"shop_id"`
	ShopName      string               `json:"shop_name"`
	Currency      string               `json:"currency"`
	CreatedAt     time.Time            `json:"created_at"`
	Announcement  string               `json:"announcement"`
	SaleMessage   string               `json:"sale_message"`
	ReviewAverage float64              `json:"review_average"`
	ReviewCount   int                  `json:"review_count"`
	Listings      []ListingSummary     `json:"listings"`
	Transactions  []TransactionSummary `json:"transactions"`
	Reviews       []ReviewSummary      `json:"reviews"`
	Stats         ShopStats            `json:"stats"`
	FetchedAt     time.Time            `json:"fetched_at"`
}

// ShopStats aggregates shop-level totals derived while building a snapshot.
type ShopStats struct {
	TotalSales     int     `json:"total_sales"`
	TotalViews     int     `json:"total_views"`
	TotalFavorites int     `json:"total_favorites"`
	Revenue        float64 `json:"revenue"`
}

// ShopInfo is the shop-level portion of a snapshot as returned by the shop fetch.
type ShopInfo struct {
	ShopID               int64     `json:"shop_id"`
	ShopName             string    `json:"shop_name"`
	Currency             string    `json:"currency"`
	CreatedAt            time.Time `json:"created_at"`
	Announcement         string    `json:"announcement"`
	SaleMessage          string    `json:"sale_message"`
	TransactionSoldCount int       `json:"transaction_sold_count"`
	ReviewAverage        float64   `json:"review_average"`
	ReviewCount          int       `json:"review_count"`
}

// ListingSummary is one active listing. Quantity is never negative.
type ListingSummary struct {
	ListingID int64   `json:"listing_id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Views     int     `json:"views"`
	Favorites int     `json:"favorites"`
	Price     float64 `json:"price"`
}

// TransactionSummary is one sold item. Transaction ids are unique per shop
// and non-decreasing in creation order as returned upstream.
type TransactionSummary struct {
	TransactionID int64     `json:"transaction_id"`
	Title         string    `json:"title"`
	BuyerName     string    `json:"buyer_name"`
	Quantity      int       `json:"quantity"`
	Amount        float64   `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReviewSummary is one buyer review. Upstream keys reviews by the transaction
// they belong to, so that id doubles as the review id.
type ReviewSummary struct {
	ReviewID  int64     `json:"review_id"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
