package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/utils"
)

const (
	MinRating = 1
	MaxRating = 5

	MaxUsernameLength = 100
	MaxCommentLength  = 2000
)

// Comment is a product review. It is immutable once stored and its
// VerifiedPurchase flag is frozen at creation time.
type Comment struct {
	ID               string    `json:"id"`
	ProductID        int       `json:"productId"`
	Username         string    `json:"username"`
	Comment          string    `json:"comment"`
	Rating           int       `json:"rating"`
	CreatedAt        time.Time `json:"createdAt"`
	VerifiedPurchase bool      `json:"verifiedPurchase"`
}

// ReviewInput is a review submission as received from a client
type ReviewInput struct {
	Username string `json:"user"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// Validate checks presence of every field and the rating bounds
func (in *ReviewInput) Validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return Validationf("Name is required")
	}
	if strings.TrimSpace(in.Comment) == "" {
		return Validationf("Comment is required")
	}
	if utils.RuneLen(strings.TrimSpace(in.Username)) > MaxUsernameLength {
		return Validationf("Name must be at most %d characters", MaxUsernameLength)
	}
	if utils.RuneLen(strings.TrimSpace(in.Comment)) > MaxCommentLength {
		return Validationf("Comment must be at most %d characters", MaxCommentLength)
	}
	if in.Rating < MinRating || in.Rating > MaxRating {
		return Validationf("Rating must be between %d and %d", MinRating, MaxRating)
	}
	return nil
}

// Aggregate is the denormalized review summary stored on a product
type Aggregate struct {
	Rating       float64 `json:"rating"`
	ReviewsCount int     `json:"reviewsCount"`
}

// ComputeAggregate derives the product aggregate from the full set of
// ratings: the mean rounded half away from zero to one decimal place.
func ComputeAggregate(ratings []int) Aggregate {
	if len(ratings) == 0 {
		return Aggregate{}
	}
	var sum int64
	for _, r := range ratings {
		sum += int64(r)
	}
	mean := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(ratings)))).Round(1)
	return Aggregate{
		Rating:       mean.InexactFloat64(),
		ReviewsCount: len(ratings),
	}
}

// PurchaserName is the customer name recorded on an order
type PurchaserName struct {
	Firstname string
	Lastname  string
}

// MatchesReviewer reports whether the normalized full name contains the
// normalized reviewer name. An empty reviewer name never matches.
func (p PurchaserName) MatchesReviewer(username string) bool {
	needle := normalizeName(username)
	if needle == "" {
		return false
	}
	return strings.Contains(normalizeName(p.Firstname+" "+p.Lastname), needle)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CommentSort selects the comment listing order
type CommentSort string

const (
	CommentSortNewest  CommentSort = "newest"
	CommentSortOldest  CommentSort = "oldest"
	CommentSortHighest CommentSort = "highest"
	CommentSortLowest  CommentSort = "lowest"
)

// CommentQuery filters the comments of one product
type CommentQuery struct {
	ProductID int
	Sort      CommentSort
	Stars     int
}

// Normalize applies defaults and rejects unknown values
func (q *CommentQuery) Normalize() error {
	switch q.Sort {
	case "":
		q.Sort = CommentSortNewest
	case CommentSortNewest, CommentSortOldest, CommentSortHighest, CommentSortLowest:
	default:
		return Validationf("Unknown sort: %s", q.Sort)
	}
	if q.Stars != 0 && (q.Stars < MinRating || q.Stars > MaxRating) {
		return Validationf("Stars must be between %d and %d", MinRating, MaxRating)
	}
	return nil
}
