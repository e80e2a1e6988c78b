package character

import "errors"

var ErrNotACharacter = errors.New("entity has no character component")
