// Command seed loads categories, an admin account and starter coupons from a
// YAML file. Running it twice leaves the database unchanged.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/nomanqadri34/vcx-mart-sub002/config"
	"github.com/nomanqadri34/vcx-mart-sub002/database"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
)

type categorySeed struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Image       string         `yaml:"image"`
	Children    []categorySeed `yaml:"children"`
}

type adminSeed struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type couponSeed struct {
	Code           string  `yaml:"code"`
	Description    string  `yaml:"description"`
	DiscountType   string  `yaml:"discountType"`
	Value          float64 `yaml:"value"`
	MinOrderAmount float64 `yaml:"minOrderAmount"`
	MaxDiscount    float64 `yaml:"maxDiscount"`
	UsageLimit     int     `yaml:"usageLimit"`
	ValidDays      int     `yaml:"validDays"`
}

type seedFile struct {
	Admin      adminSeed      `yaml:"admin"`
	Categories []categorySeed `yaml:"categories"`
	Coupons    []couponSeed   `yaml:"coupons"`
}

func parseSeed(data []byte) (seedFile, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse seed file: %w", err)
	}
	return f, f.validate()
}

func (f seedFile) validate() error {
	if f.Admin.Email != "" && len(f.Admin.Password) < 8 {
		return errors.New("admin password must be at least 8 characters")
	}
	var walk func(cs []categorySeed, path string) error
	walk = func(cs []categorySeed, path string) error {
		for _, c := range cs {
			if models.Slugify(c.Name) == "" {
				return fmt.Errorf("category %q under %q has no usable name", c.Name, path)
			}
			if err := walk(c.Children, path+"/"+c.Name); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(f.Categories, ""); err != nil {
		return err
	}
	for _, c := range f.Coupons {
		if c.DiscountType != models.DiscountPercentage && c.DiscountType != models.DiscountFixed {
			return fmt.Errorf("coupon %s: unknown discount type %q", c.Code, c.DiscountType)
		}
		if c.Value <= 0 || (c.DiscountType == models.DiscountPercentage && c.Value > 100) {
			return fmt.Errorf("coupon %s: invalid value %v", c.Code, c.Value)
		}
	}
	return nil
}

// couponFor builds the stored coupon; it starts at now and runs ValidDays (30 by default).
func couponFor(c couponSeed, now time.Time) models.Coupon {
	days := c.ValidDays
	if days <= 0 {
		days = 30
	}
	return models.Coupon{
		Code:           models.NormalizeCouponCode(c.Code),
		Description:    c.Description,
		DiscountType:   c.DiscountType,
		Value:          c.Value,
		MinOrderAmount: c.MinOrderAmount,
		MaxDiscount:    c.MaxDiscount,
		ValidFrom:      now,
		ValidUntil:     now.AddDate(0, 0, days),
		UsageLimit:     c.UsageLimit,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

type seeder struct {
	store *database.Store
	now   time.Time
	added int
}

// upsert inserts doc when filter matches nothing and returns the stored document.
func (s *seeder) upsert(ctx context.Context, coll *mongo.Collection, filter bson.M, doc any, out any) error {
	res := coll.FindOneAndUpdate(ctx, filter, bson.M{"$setOnInsert": doc},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After))
	if err := res.Decode(out); err != nil {
		return err
	}
	return nil
}

func (s *seeder) categories(ctx context.Context, seeds []categorySeed, parent *models.Category) error {
	for i, cs := range seeds {
		cat := models.Category{
			ID:          primitive.NewObjectID(),
			Name:        strings.TrimSpace(cs.Name),
			Slug:        models.Slugify(cs.Name),
			Description: cs.Description,
			Image:       cs.Image,
			SortOrder:   i,
			IsActive:    true,
			CreatedAt:   s.now,
			UpdatedAt:   s.now,
		}
		if parent != nil {
			cat.Parent = &parent.ID
		}
		cat.Ancestors, cat.Level = models.Lineage(parent)

		var stored models.Category
		if err := s.upsert(ctx, s.store.Categories, bson.M{"slug": cat.Slug}, cat, &stored); err != nil {
			return fmt.Errorf("category %s: %w", cat.Slug, err)
		}
		if stored.ID == cat.ID {
			s.added++
			log.Printf("[seed] category %s (level %d)", stored.Slug, stored.Level)
		}
		if err := s.categories(ctx, cs.Children, &stored); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) admin(ctx context.Context, a adminSeed) error {
	if a.Email == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := models.User{
		ID:        primitive.NewObjectID(),
		Name:      a.Name,
		Email:     strings.ToLower(strings.TrimSpace(a.Email)),
		Password:  string(hash),
		Role:      models.RoleAdmin,
		IsActive:  true,
		Addresses: []models.Address{},
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	var stored models.User
	if err := s.upsert(ctx, s.store.Users, bson.M{"email": u.Email}, u, &stored); err != nil {
		return fmt.Errorf("admin %s: %w", u.Email, err)
	}
	if stored.ID == u.ID {
		s.added++
		log.Printf("[seed] admin %s", u.Email)
	} else if stored.Role != models.RoleAdmin {
		log.Printf("[seed] %s exists with role %s, left unchanged", u.Email, stored.Role)
	}
	return nil
}

func (s *seeder) coupons(ctx context.Context, seeds []couponSeed) error {
	for _, cs := range seeds {
		cp := couponFor(cs, s.now)
		cp.ID = primitive.NewObjectID()
		var stored models.Coupon
		if err := s.upsert(ctx, s.store.Coupons, bson.M{"code": cp.Code}, cp, &stored); err != nil {
			return fmt.Errorf("coupon %s: %w", cp.Code, err)
		}
		if stored.ID == cp.ID {
			s.added++
			log.Printf("[seed] coupon %s", cp.Code)
		}
	}
	return nil
}

func main() {
	file := flag.String("file", "cmd/seed/seed.example.yaml", "seed file")
	flag.Parse()

	config.LoadEnv()
	uri := config.GetEnv("MONGO_URI", "")
	dbName := config.GetEnv("DB_NAME", "")

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("[seed] %v", err)
	}
	seed, err := parseSeed(data)
	if err != nil {
		log.Fatalf("[seed] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := database.Connect(ctx, uri, dbName)
	if err != nil {
		log.Fatalf("❌ MongoDB: %v", err)
	}
	defer func() { _ = store.Close(context.Background()) }()
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("❌ MongoDB indexes: %v", err)
	}

	s := &seeder{store: store, now: time.Now().UTC()}
	if err := s.admin(ctx, seed.Admin); err != nil {
		log.Fatalf("[seed] %v", err)
	}
	if err := s.categories(ctx, seed.Categories, nil); err != nil {
		log.Fatalf("[seed] %v", err)
	}
	if err := s.coupons(ctx, seed.Coupons); err != nil {
		log.Fatalf("[seed] %v", err)
	}
	log.Printf("[seed] done, %d new documents", s.added)
}
