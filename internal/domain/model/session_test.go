package model_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/verbelo/verbelo/internal/domain/model"
)

func TestSessionValidate(t *testing.T) {
	Convey("Given a well-formed session", t, func() {
		base := model.Session{
			SessionID:  "s-1",
			PlayerID:   "p-1",
			Accuracy:   1,
			Attempts:   4,
			TimeTaken:  120,
			Difficulty: 3,
		}

		Convey("Then it validates", func() {
			So(base.Validate(), ShouldBeNil)
		})

		Convey("Then each broken field is rejected with the signal sentinel", func() {
			cases := []struct {
				name   string
				mutate func(*model.Session)
			}{
				{"missing player id", func(s *model.Session) { s.PlayerID = "" }},
				{"zero attempts", func(s *model.Session) { s.Attempts = 0 }},
				{"negative attempts", func(s *model.Session) { s.Attempts = -3 }},
				{"zero time", func(s *model.Session) { s.TimeTaken = 0 }},
				{"negative time", func(s *model.Session) { s.TimeTaken = -1 }},
				{"accuracy above one", func(s *model.Session) { s.Accuracy = 1.5 }},
				{"accuracy below zero", func(s *model.Session) { s.Accuracy = -0.1 }},
				{"difficulty below range", func(s *model.Session) { s.Difficulty = 0.5 }},
				{"difficulty above range", func(s *model.Session) { s.Difficulty = 6 }},
			}
			for _, tc := range cases {
				s := base
				tc.mutate(&s)
				err := s.Validate()
				So(err, ShouldNotBeNil)
				So(errors.Is(err, model.ErrInvalidSignals), ShouldBeTrue)
			}
		})
	})
}

func TestSessionSignals(t *testing.T) {
	Convey("Given a session", t, func() {
		s := model.Session{
			PlayerID:   "p-1",
			Accuracy:   0.8,
			Attempts:   7,
			TimeTaken:  90,
			Difficulty: 2,
		}

		Convey("Then Signals carries the rating inputs verbatim", func() {
			sig := s.Signals()
			So(sig.Accuracy, ShouldEqual, 0.8)
			So(sig.Attempts, ShouldEqual, 7)
			So(sig.TimeTaken, ShouldEqual, 90.0)
			So(sig.Difficulty, ShouldEqual, 2.0)
		})
	})
}
