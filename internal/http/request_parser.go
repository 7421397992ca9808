package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator instances cache struct metadata.
var validate = validator.New()

const maxBodySize = 1 << 20 // 1 MiB

// decodeBody decodes the JSON request body into dst and runs its `validate`
// tags. Returns a message suitable for the client on failure.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		return errors.New(msgInvalidBody)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("campo '%s' no válido", verrs[0].Field())
		}
		return errors.New(msgInvalidBody)
	}
	return nil
}
