package cert

import "errors"

// errCANotInitialized is returned when leaf issuance is attempted before the
// CA certificate and key are generated or loaded.
var errCANotInitialized = errors.New("certificate authority is not initialized")
