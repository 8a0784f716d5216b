package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Product          primitive.ObjectID `bson:"product" json:"product"`
	User             primitive.ObjectID `bson:"user" json:"user"`
	UserName         string             `bson:"userName" json:"userName"`
	Rating           int                `bson:"rating" json:"rating"`
	Title            string             `bson:"title,omitempty" json:"title,omitempty"`
	Comment          string             `bson:"comment" json:"comment"`
	VerifiedPurchase bool               `bson:"verifiedPurchase" json:"verifiedPurchase"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RatingBucket is one row of a {_id: rating, count} aggregation.
type RatingBucket struct {
	Rating int `bson:"_id"`
	Count  int `bson:"count"`
}

type RatingSummary struct {
	Average      float64     `json:"average"`
	Count        int         `json:"count"`
	Distribution map[int]int `json:"distribution"`
}

// SummarizeRatings folds rating buckets into an average rounded to one decimal.
func SummarizeRatings(buckets []RatingBucket) RatingSummary {
	s := RatingSummary{Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	sum := 0
	for _, b := range buckets {
		if b.Rating < 1 || b.Rating > 5 {
			continue
		}
		s.Distribution[b.Rating] += b.Count
		s.Count += b.Count
		sum += b.Rating * b.Count
	}
	if s.Count > 0 {
		s.Average = math.Round(float64(sum)/float64(s.Count)*10) / 10
	}
	return s
}
