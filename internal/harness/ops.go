package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/engine"
	"github.com/roach88/previa/internal/ledger"
	"github.com/roach88/previa/internal/quote"
	"github.com/roach88/previa/internal/workorder"
)

// decodeFunc decodes the resolved step arguments into v, rejecting
// unknown fields.
type decodeFunc func(v interface{}) error

// operation runs one engine call and returns what it produced.
type operation func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error)

// parseDate accepts an RFC 3339 instant or a plain date. Empty is the
// zero time, which the engine replaces with the current instant.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, err)
	}
	return t, nil
}

type jobArgs struct {
	Title       string  `yaml:"title"`
	Client      string  `yaml:"client"`
	JobCode     string  `yaml:"job_code"`
	AgreedTotal float64 `yaml:"agreed_total"`
	Note        string  `yaml:"note"`
}

type idArgs struct {
	Job      string `yaml:"job"`
	Line     string `yaml:"line"`
	Purchase string `yaml:"purchase"`
	Movement string `yaml:"movement"`
	Quote    string `yaml:"quote"`
	Note     string `yaml:"note"`
}

type paymentArgs struct {
	Job    string  `yaml:"job"`
	Amount float64 `yaml:"amount"`
	Method string  `yaml:"method"`
	Note   string  `yaml:"note"`
	Date   string  `yaml:"date"`
}

type lineArgs struct {
	Job         string  `yaml:"job"`
	Kind        string  `yaml:"kind"`
	Description string  `yaml:"description"`
	Qty         float64 `yaml:"qty"`
	Unit        string  `yaml:"unit"`
	UnitPrice   float64 `yaml:"unit_price"`
	Note        string  `yaml:"note"`
}

type purchaseArgs struct {
	Supplier  string  `yaml:"supplier"`
	Product   string  `yaml:"product"`
	Qty       float64 `yaml:"qty"`
	Unit      string  `yaml:"unit"`
	UnitPrice float64 `yaml:"unit_price"`
	JobCode   string  `yaml:"job_code"`
	Note      string  `yaml:"note"`
	Date      string  `yaml:"date"`
}

type movementArgs struct {
	Date             string  `yaml:"date"`
	Description      string  `yaml:"description"`
	JobCode          string  `yaml:"job_code"`
	Amount           float64 `yaml:"amount"`
	Direction        string  `yaml:"direction"`
	CounterpartyKind string  `yaml:"counterparty_kind"`
	CounterpartyName string  `yaml:"counterparty_name"`
}

type amountArgs struct {
	Amount float64 `yaml:"amount"`
}

type nameArgs struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
}

type quoteArgs struct {
	Client  string `yaml:"client"`
	JobCode string `yaml:"job_code"`
}

type rowArgs struct {
	Quote       string   `yaml:"quote"`
	Index       int      `yaml:"index"`
	Description string   `yaml:"description"`
	Qty         float64  `yaml:"qty"`
	UnitPrice   float64  `yaml:"unit_price"`
	DiscountPct float64  `yaml:"discount_pct"`
	VATPct      *float64 `yaml:"vat_pct"`
}

func (a rowArgs) input() quote.RowInput {
	return quote.RowInput{
		Description: a.Description,
		Quantity:    a.Qty,
		UnitPrice:   a.UnitPrice,
		DiscountPct: a.DiscountPct,
		VATPct:      a.VATPct,
	}
}

type headerArgs struct {
	Quote   string  `yaml:"quote"`
	Client  *string `yaml:"client"`
	JobCode *string `yaml:"job_code"`
	Notes   *string `yaml:"notes"`
}

type resetQuoteArgs struct {
	Quote       string `yaml:"quote"`
	ClearHeader bool   `yaml:"clear_header"`
}

type documentArgs struct {
	Filename string `yaml:"filename"`
	Document string `yaml:"document"`
}

// withID decodes idArgs for operations keyed by a single record id.
func withID(fn func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error)) operation {
	return func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a idArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return fn(ctx, e, a)
	}
}

// operations maps scenario operation names to engine calls.
var operations = map[string]operation{
	"create_job": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a jobArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.CreateJob(ctx, workorder.JobInput{
			Title:       a.Title,
			Client:      a.Client,
			JobCode:     a.JobCode,
			AgreedTotal: a.AgreedTotal,
			Note:        a.Note,
		})
	},
	"update_job_note": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return e.UpdateJobNote(ctx, a.Job, a.Note)
	}),
	"archive_job": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return e.ArchiveJob(ctx, a.Job)
	}),
	"delete_job": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return e.DeleteJobCascade(ctx, a.Job)
	}),
	"create_payment": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a paymentArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		date, err := parseDate(a.Date)
		if err != nil {
			return nil, err
		}
		return e.CreatePayment(ctx, workorder.PaymentInput{
			JobID:  a.Job,
			Amount: a.Amount,
			Method: a.Method,
			Note:   a.Note,
			Date:   date,
		})
	},
	"create_job_line": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a lineArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.CreateJobLine(ctx, workorder.LineInput{
			JobID:       a.Job,
			Kind:        domain.ParseLineKind(a.Kind),
			Description: a.Description,
			Quantity:    a.Qty,
			Unit:        a.Unit,
			UnitPrice:   a.UnitPrice,
			Note:        a.Note,
		})
	},
	"toggle_job_line": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return e.ToggleJobLineDone(ctx, a.Line)
	}),
	"delete_job_line": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return nil, e.DeleteJobLine(ctx, a.Line)
	}),
	"create_purchase": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a purchaseArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		date, err := parseDate(a.Date)
		if err != nil {
			return nil, err
		}
		return e.CreatePurchaseLine(ctx, workorder.PurchaseInput{
			Supplier:  a.Supplier,
			Product:   a.Product,
			Quantity:  a.Qty,
			Unit:      a.Unit,
			UnitPrice: a.UnitPrice,
			JobCode:   a.JobCode,
			Note:      a.Note,
			Date:      date,
		})
	},
	"delete_purchase": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		n, err := e.DeletePurchaseLine(ctx, a.Purchase)
		return map[string]interface{}{"movements": n}, err
	}),
	"add_movement": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a movementArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		date, err := parseDate(a.Date)
		if err != nil {
			return nil, err
		}
		return e.AddMovement(ctx, ledger.MovementInput{
			Date:             date,
			Description:      a.Description,
			JobCode:          a.JobCode,
			Amount:           a.Amount,
			Direction:        domain.Direction(a.Direction),
			CounterpartyKind: domain.CounterpartyKind(a.CounterpartyKind),
			CounterpartyName: a.CounterpartyName,
		})
	},
	"delete_movement": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return nil, e.DeleteMovement(ctx, a.Movement)
	}),
	"set_opening_balance": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a amountArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return nil, e.SetOpeningBalance(ctx, a.Amount)
	},
	"add_name": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a nameArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		added, err := e.AddName(ctx, domain.CounterpartyKind(a.Kind), a.Name)
		return map[string]interface{}{"added": added}, err
	},
	"create_quote": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a quoteArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.CreateQuote(ctx, a.Client, a.JobCode)
	},
	"add_quote_row": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a rowArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.AddQuoteRow(ctx, a.Quote, a.input())
	},
	"update_quote_row": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a rowArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.UpdateQuoteRow(ctx, a.Quote, a.Index, a.input())
	},
	"remove_quote_row": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a rowArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.RemoveQuoteRow(ctx, a.Quote, a.Index)
	},
	"set_quote_header": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a headerArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.SetQuoteHeader(ctx, a.Quote, quote.HeaderInput{
			Client:  a.Client,
			JobCode: a.JobCode,
			Notes:   a.Notes,
		})
	},
	"lock_quote": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return e.LockQuote(ctx, a.Quote)
	}),
	"unlock_quote": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return e.UnlockQuote(ctx, a.Quote)
	}),
	"duplicate_quote": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return e.DuplicateQuote(ctx, a.Quote)
	}),
	"confirm_quote": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return e.ConfirmQuoteAsJob(ctx, a.Quote)
	}),
	"reset_quote": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a resetQuoteArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.ResetQuote(ctx, a.Quote, a.ClearHeader)
	},
	"delete_quote": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return nil, e.DeleteQuote(ctx, a.Quote)
	}),
	"select_quote": withID(func(ctx context.Context, e *engine.Engine, a idArgs) (interface{}, error) {
		return nil, e.SelectQuote(ctx, a.Quote)
	}),
	"import_purchases": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a documentArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.ImportPurchases(ctx, a.Filename, []byte(a.Document))
	},
	"import_state": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a documentArgs
		if err := decode(&a); err != nil {
			return nil, err
		}
		return e.ImportState(ctx, a.Filename, []byte(a.Document))
	},
	"reset": func(ctx context.Context, e *engine.Engine, decode decodeFunc) (interface{}, error) {
		var a struct{}
		if err := decode(&a); err != nil {
			return nil, err
		}
		return nil, e.Reset(ctx)
	},
}
