package httpserver

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// createUserRequest is the body for POST /users.
type createUserRequest struct {
	ID               int64 `json:"id" validate:"required"`
	IsVerifiedSeller bool  `json:"is_verified_seller"`
}

// createAdvertisementRequest is the body for POST /advertisements.
type createAdvertisementRequest struct {
	SellerID    int64  `json:"seller_id" validate:"required"`
	ItemID      int64  `json:"item_id" validate:"required"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	Category    int    `json:"category" validate:"gte=0"`
	ImagesQty   int    `json:"images_qty" validate:"gte=0"`
}

// predictRequest is the shared body for POST /predict and POST /async_predict.
type predictRequest struct {
	ItemID int64 `json:"item_id" validate:"required"`
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			out[toSnake(fe.Field())] = fe.Tag()
		}
	}
	return out
}

func toSnake(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			c = c - 'A' + 'a'
		}
		out = append(out, c)
	}
	return string(out)
}
