package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MaxTags      = 20
	MaxTagLength = 50
	MaxRating    = 5
)

type Product struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string          `gorm:"type:varchar(255);not null" json:"title"`
	Description   string          `gorm:"type:text" json:"description"`
	Price         decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	ImageURL      string          `gorm:"type:varchar(500)" json:"image_url"`
	Category      string          `gorm:"type:varchar(100);index" json:"category"`
	StockQuantity int64           `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`
	IsAvailable   bool            `gorm:"not null;default:true" json:"is_available"`
	Rating        decimal.Decimal `gorm:"type:numeric(3,2);not null;default:0" json:"rating"`
	ReviewCount   int64           `gorm:"not null;default:0" json:"review_count"`
	IsFavorite    bool            `gorm:"not null;default:false;index" json:"is_favorite"`
	Tags          Tags            `gorm:"type:jsonb" json:"tags"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// 購入可能か（論理削除・非公開は不可）
func (p Product) Purchasable() bool {
	return p.IsAvailable && !p.DeletedAt.Valid
}

// NextRating は評価を1件足した後の平均（小数2桁）。
// DB側の ROUND((rating*review_count + ?)/(review_count+1), 2) と同じ計算。
func NextRating(current decimal.Decimal, count int64, add decimal.Decimal) decimal.Decimal {
	total := current.Mul(decimal.NewFromInt(count)).Add(add)
	return total.Div(decimal.NewFromInt(count + 1)).Round(2)
}

// 商品タグ。jsonbの配列で保存する。
type Tags []string

// ParseTags はカンマ区切りの文字列を分解する
func ParseTags(s string) Tags {
	return Tags(strings.Split(s, ",")).Normalize()
}

// Normalize は前後の空白を落とし、空と重複を除く（順序は保つ）
func (t Tags) Normalize() Tags {
	out := Tags{}
	seen := map[string]bool{}
	for _, tag := range t {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// 配列と "a, b" 形式の文字列のどちらも受け付ける
func (t *Tags) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = ParseTags(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	*t = Tags(arr).Normalize()
	return nil
}

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Tags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("tags: unsupported type")
	}
	arr := []string{}
	if err := json.Unmarshal(raw, &arr); err != nil {
		return err
	}
	*t = arr
	return nil
}
