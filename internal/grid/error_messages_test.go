package grid

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name: "nil error returns empty",
			err:  nil,
		},
		{
			name:        "unsupported operation",
			err:         &UnsupportedError{Op: "bulkDelete"},
			wantCode:    "GRID001",
			wantMessage: "This operation is not supported by the data source",
		},
		{
			name:        "wrapped row not found",
			err:         fmt.Errorf("update 9: %w", ErrRowNotFound),
			wantCode:    "GRID002",
			wantMessage: "Row not found",
		},
		{
			name:        "unknown grid",
			err:         fmt.Errorf("%w: orders", ErrUnknownGrid),
			wantCode:    "GRID006",
			wantMessage: "Unknown grid",
		},
		{
			name:        "single validation error uses its pattern",
			err:         ValidationErrors{{Column: "price", Message: "invalid number format"}},
			wantCode:    "VAL002",
			wantMessage: "Invalid number format detected",
		},
		{
			name: "several validation errors",
			err: ValidationErrors{
				{Column: "price", Message: "invalid number format"},
				{Column: "name", Message: "required field is empty"},
			},
			wantCode:    "VAL000",
			wantMessage: "Some values are invalid",
		},
		{
			name:        "commit error unwraps to source pattern",
			err:         &CommitError{RowID: "3", Err: errors.New("dial tcp: connection refused")},
			wantCode:    "SRC001",
			wantMessage: "Unable to reach the data source",
		},
		{
			name:        "fetch timeout",
			err:         &FetchError{Generation: 2, Err: errors.New("context deadline exceeded")},
			wantCode:    "SRC002",
			wantMessage: "Request timed out",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("ERROR: DUPLICATE KEY value"),
			wantCode:    "SRC004",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
	got := FormatUserError(ErrCommitInProgress)
	want := "A save for this row is already running (Code: GRID004). Wait for the current save to finish"
	if got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if IsUserFacing(errors.New("segfault in the flux capacitor")) {
		t.Error("unknown error reported as user facing")
	}
	if !IsUserFacing(ErrInvalidPagination) {
		t.Error("ErrInvalidPagination not user facing")
	}
}
