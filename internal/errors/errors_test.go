package errors_test

import (
	"context"
	"net"
	"os"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fixdesk/fixdesk/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected apperrors.Kind
	}{
		{"invalid credentials", apperrors.ErrInvalidCredentials, apperrors.KindAuth},
		{"session expired", apperrors.ErrSessionExpired, apperrors.KindAuth},
		{"blocked user", apperrors.ErrUserBlocked, apperrors.KindAuth},
		{"timeout", apperrors.ErrTimeout, apperrors.KindTransient},
		{"backend down", apperrors.ErrBackendUnavailable, apperrors.KindTransient},
		{"context deadline", context.DeadlineExceeded, apperrors.KindTransient},
		{"context cancelled", context.Canceled, apperrors.KindTransient},
		{"missing profile", apperrors.ErrProfileNotFound, apperrors.KindData},
		{"missing tenant", apperrors.ErrTenantNotFound, apperrors.KindData},
		{"nil", nil, apperrors.KindUnknown},
		{"unrelated", os.ErrPermission, apperrors.KindUnknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, apperrors.Classify(test.err))
		})
	}
}

func TestClassifySeesThroughWrapping(t *testing.T) {
	wrapped := pkgerrors.Wrap(apperrors.ErrSessionExpired, "[Controller.validateSession]")
	require.True(t, apperrors.IsAuth(wrapped))

	doubleWrapped := apperrors.Wrapf(pkgerrors.Wrap(apperrors.ErrTimeout, "inner"), "outer %s", "context")
	require.True(t, apperrors.IsTransient(doubleWrapped))
}

func TestClassifyNetworkErrorsAsTransient(t *testing.T) {
	var netErr net.Error = &net.DNSError{Err: "no such host", IsTimeout: false}
	require.Equal(t, apperrors.KindTransient, apperrors.Classify(netErr))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "auth", apperrors.KindAuth.String())
	require.Equal(t, "transient", apperrors.KindTransient.String())
	require.Equal(t, "data", apperrors.KindData.String())
	require.Equal(t, "unknown", apperrors.KindUnknown.String())
}
