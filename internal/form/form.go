package form

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
)

var (
	// ErrInvalidForm wraps every validation failure
	ErrInvalidForm = errors.New("invalid transfer form")

	// ErrDuplicateTokenID is returned when the same token ID appears twice
	ErrDuplicateTokenID = errors.New("duplicate token ID")
)

// TransferForm is the raw user input of a transfer
type TransferForm struct {
	Standard  domain.ContractType `validate:"required,oneof=ERC721 ERC1155"`
	Contract  string              `validate:"required,eth_addr"`
	Recipient string              `validate:"required,eth_addr,ne_ignore_case=0x0000000000000000000000000000000000000000"`
	TokenIDs  []string            `validate:"required,min=1,dive,required,token_id"`
	Amounts   []string            `validate:"required_if=Standard ERC1155,excluded_if=Standard ERC721,dive,required,amount"`
}

// Transfer is a validated transfer request
type Transfer struct {
	Standard  domain.ContractType
	Contract  common.Address
	Recipient common.Address
	TokenIDs  []*big.Int
	Amounts   []*big.Int
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("token_id", func(fl validator.FieldLevel) bool {
		n, ok := parseUint(fl.Field().String())
		return ok && n.Sign() >= 0 && n.BitLen() <= 256
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		n, ok := parseUint(fl.Field().String())
		return ok && n.Sign() > 0 && n.BitLen() <= 256
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		f := sl.Current().Interface().(TransferForm)
		if (f.Standard == domain.ContractTypeERC1155 || len(f.Amounts) > 0) && len(f.Amounts) != len(f.TokenIDs) {
			sl.ReportError(f.Amounts, "Amounts", "Amounts", "count_mismatch", "")
		}
	}, TransferForm{})
	return v
}

// Validate checks the form and converts it into a transfer request
func (f TransferForm) Validate() (*Transfer, error) {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidForm, describe(verrs))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}

	t := &Transfer{
		Standard:  f.Standard,
		Contract:  common.HexToAddress(f.Contract),
		Recipient: common.HexToAddress(f.Recipient),
		TokenIDs:  make([]*big.Int, len(f.TokenIDs)),
	}

	seen := make(map[string]struct{}, len(f.TokenIDs))
	for i, raw := range f.TokenIDs {
		id, _ := parseUint(raw)
		key := id.String()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %w %s", ErrInvalidForm, ErrDuplicateTokenID, key)
		}
		seen[key] = struct{}{}
		t.TokenIDs[i] = id
	}

	if len(f.Amounts) > 0 {
		t.Amounts = make([]*big.Int, len(f.Amounts))
		for i, raw := range f.Amounts {
			t.Amounts[i], _ = parseUint(raw)
		}
	}

	return t, nil
}

// ParseTokenIDs validates and converts a list of token IDs, keeping the input order
func ParseTokenIDs(raw []string) ([]*big.Int, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: TokenIDs: must not be empty", ErrInvalidForm)
	}

	ids := make([]*big.Int, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, value := range raw {
		if err := validate.Var(value, "required,token_id"); err != nil {
			return nil, fmt.Errorf("%w: TokenIDs[%d]: is not a valid token ID", ErrInvalidForm, i)
		}
		id, _ := parseUint(value)
		key := id.String()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %w %s", ErrInvalidForm, ErrDuplicateTokenID, key)
		}
		seen[key] = struct{}{}
		ids[i] = id
	}
	return ids, nil
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseUint(raw string) (*big.Int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "-") || strings.HasPrefix(raw, "+") {
		return nil, false
	}
	return new(big.Int).SetString(raw, 10)
}

func describe(verrs validator.ValidationErrors) string {
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fmt.Sprintf("%s: %s", fe.Namespace(), reason(fe)))
	}
	return strings.Join(messages, "; ")
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "eth_addr":
		return "is not a valid address"
	case "ne_ignore_case":
		return "must not be the zero address"
	case "oneof":
		return "must be ERC721 or ERC1155"
	case "token_id":
		return "is not a valid token ID"
	case "amount":
		return "must be a positive integer"
	case "excluded_if":
		return "is not allowed for ERC721 transfers"
	case "count_mismatch":
		return "must have one amount per token ID"
	case "min":
		return "must not be empty"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}
