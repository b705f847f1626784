package validation

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type swipeRequest struct {
	SessionID  string `json:"session_id" validate:"required,uuid"`
	ItemID     string `json:"item_id" validate:"required"`
	Direction  string `json:"direction" validate:"required,direction"`
	DurationMS *int64 `json:"swipe_duration_ms" validate:"omitempty,gt=0"`
	TotalCards int    `json:"total_cards" validate:"omitempty,gte=1,lte=50"`
}

func TestStruct(t *testing.T) {
	Convey("Given the shared validator", t, func() {
		So(Get(), ShouldPointTo, Get())

		Convey("When a request is valid", func() {
			req := swipeRequest{
				SessionID: "6f1c5a3e-1b2d-4c3e-9f00-0123456789ab",
				ItemID:    "x1",
				Direction: "right",
			}

			Convey("Then no error is returned", func() {
				So(Struct(&req), ShouldBeNil)
			})
		})

		Convey("When several fields are invalid", func() {
			neg := int64(-5)
			req := swipeRequest{
				SessionID:  "not-a-uuid",
				Direction:  "sideways",
				DurationMS: &neg,
				TotalCards: 51,
			}
			err := Struct(&req)

			Convey("Then every field is reported by its json name", func() {
				var verr *RequestValidationError
				So(errors.As(err, &verr), ShouldBeTrue)

				byField := map[string]string{}
				for _, f := range verr.Fields {
					byField[f.Field] = f.Tag
				}
				So(byField["session_id"], ShouldEqual, "uuid")
				So(byField["item_id"], ShouldEqual, "required")
				So(byField["direction"], ShouldEqual, "direction")
				So(byField["swipe_duration_ms"], ShouldEqual, "gt")
				So(byField["total_cards"], ShouldEqual, "lte")
			})

			Convey("Then the message names the fields", func() {
				So(err.Error(), ShouldContainSubstring, "session_id must be a valid UUID")
				So(err.Error(), ShouldContainSubstring, "swipe_duration_ms must be greater than 0")
			})
		})
	})
}
