package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/service"
)

func TestCreateMarketRequest_Validate(t *testing.T) {
	now := time.Now().UTC()
	valid := service.CreateMarketRequest{
		Title:   "Will the merge ship this quarter?",
		OptionA: "Yes",
		OptionB: "No",
		EndTime: now.Add(24 * time.Hour),
	}

	if err := valid.Validate(now); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	t.Run("deadline in the past", func(t *testing.T) {
		req := valid
		req.EndTime = now.Add(-time.Minute)
		if err := req.Validate(now); !errors.Is(err, domain.ErrInvalidDeadline) {
			t.Errorf("err = %v, want ErrInvalidDeadline", err)
		}
	})

	t.Run("deadline exactly now", func(t *testing.T) {
		req := valid
		req.EndTime = now
		if err := req.Validate(now); !errors.Is(err, domain.ErrInvalidDeadline) {
			t.Errorf("err = %v, want ErrInvalidDeadline", err)
		}
	})

	t.Run("blank title", func(t *testing.T) {
		req := valid
		req.Title = "   "
		if err := req.Validate(now); !errors.Is(err, domain.ErrInvalidTitle) {
			t.Errorf("err = %v, want ErrInvalidTitle", err)
		}
	})

	t.Run("missing option label", func(t *testing.T) {
		req := valid
		req.OptionB = ""
		if err := req.Validate(now); !errors.Is(err, domain.ErrInvalidTitle) {
			t.Errorf("err = %v, want ErrInvalidTitle", err)
		}
	})
}
