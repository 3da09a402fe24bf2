package tokens

import "errors"

var (
	ErrCorruptTokens = errors.New("stored tokens cannot be decoded")
)
