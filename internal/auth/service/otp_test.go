package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyCode(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})

	require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelEmail))
	code := env.Mail.lastCode(t)

	got, err := env.OTP.VerifyCode(ctx, "a@x.com", domain.PurposeLogin, code)
	require.NoError(t, err)
	require.Equal(t, id.ID, got.ID)

	// Consumed on first success; a replay finds nothing.
	_, err = env.OTP.VerifyCode(ctx, "a@x.com", domain.PurposeLogin, code)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestCodeIsPurposeScoped(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})

	require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposePasswordReset, domain.ChannelEmail))
	code := env.Mail.lastCode(t)

	// A PASSWORD_RESET code can never pass a LOGIN check.
	_, err := env.OTP.VerifyCode(ctx, "a@x.com", domain.PurposeLogin, code)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	// Under its own purpose it still works.
	_, err = env.OTP.VerifyCode(ctx, "a@x.com", domain.PurposePasswordReset, code)
	require.NoError(t, err)
}

func TestCodeIsSubjectScoped(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})
	env.createIdentity(t, domain.NewIdentity{Email: "b@x.com", Password: "P@ssw0rd1"})

	require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelEmail))
	code := env.Mail.lastCode(t)

	_, err := env.OTP.VerifyCode(ctx, "b@x.com", domain.PurposeLogin, code)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestCodeExpires(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})

	require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelEmail))
	code := env.Mail.lastCode(t)

	env.Clock.Advance(11 * time.Minute)

	_, err := env.OTP.VerifyCode(ctx, "a@x.com", domain.PurposeLogin, code)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestOnlyLatestCodeIsValid(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})

	require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelEmail))
	first := env.Mail.lastCode(t)

	env.Clock.Advance(time.Minute)
	require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelEmail))
	second := env.Mail.lastCode(t)

	if first == second {
		t.Skip("codes collided, cannot distinguish old from new")
	}

	_, err := env.OTP.VerifyCode(ctx, "a@x.com", domain.PurposeLogin, first)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	_, err = env.OTP.VerifyCode(ctx, "a@x.com", domain.PurposeLogin, second)
	require.NoError(t, err)
}

func TestIssueCodeUnknownSubjectIsSilent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	require.NoError(t, env.OTP.IssueCode(context.Background(), "nobody@x.com", domain.PurposeLogin, domain.ChannelEmail))
	require.Zero(t, env.Mail.count(), "no email goes out for unknown subjects")
}

func TestIssueCodeSMSChannel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	phone := "+61400000000"
	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1", Phone: &phone})
	env.createIdentity(t, domain.NewIdentity{Email: "nophone@x.com", Password: "P@ssw0rd1"})

	t.Run("requires a stored phone number", func(t *testing.T) {
		err := env.OTP.IssueCode(ctx, "nophone@x.com", domain.PurposeLogin, domain.ChannelSMS)
		require.ErrorIs(t, err, ErrSMSUnavailable)
	})

	t.Run("delivers to both channels", func(t *testing.T) {
		require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelSMS))
		require.NotZero(t, env.Mail.count())
		require.NotEmpty(t, env.SMS.Sent)
	})

	t.Run("surfaces delivery failure", func(t *testing.T) {
		env.SMS.Fail = errors.New("provider down")
		defer func() { env.SMS.Fail = nil }()

		err := env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelSMS)
		require.ErrorIs(t, err, ErrSMSDeliveryFailed)
	})
}

func TestIssueCodeEmailFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})

	env.Mail.Fail = errors.New("smtp down")
	require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelEmail),
		"email is best-effort and retried out of band")
}

func TestIssueCodeThrottled(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})
	env.OTP.Limiter = NewIssueLimiter(1, time.Hour, 1)

	require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelEmail))

	err := env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeLogin, domain.ChannelEmail)
	require.ErrorIs(t, err, ErrTooManyRequests)

	// The throttle is keyed by (subject, purpose): other flows still work.
	require.NoError(t, env.OTP.IssueCode(ctx, "a@x.com", domain.PurposeRevalidation, domain.ChannelEmail))
}
