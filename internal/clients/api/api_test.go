package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/pixsort-client/internal/clients/authapi"
	"github.com/pribylovaa/pixsort-client/internal/fakeapi"
	"github.com/pribylovaa/pixsort-client/internal/models"
	"github.com/pribylovaa/pixsort-client/internal/session"
	"github.com/pribylovaa/pixsort-client/internal/store/memory"
)

type fixture struct {
	srv *fakeapi.Server
	mgr *session.Manager
	api *Client
}

// newFixture поднимает фейковый бэкенд и клиент поверх session.Transport.
// login=true — alice уже вошла.
func newFixture(t *testing.T, login bool) *fixture {
	t.Helper()

	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	srv.AddUser("alice", "correctpw")
	srv.AddUser("bob", "bobpw")

	auth, err := authapi.New(srv.URL, authapi.Options{HTTPClient: srv.Client()})
	require.NoError(t, err)

	mgr := session.New(memory.New(), auth, session.Options{})
	require.NoError(t, mgr.Init(context.Background()))

	if login {
		_, err := mgr.Login(context.Background(), "alice", "correctpw")
		require.NoError(t, err)
	}

	hc := &http.Client{Transport: &session.Transport{Base: srv.Client().Transport, Session: mgr}}
	c, err := New(srv.URL, hc)
	require.NoError(t, err)

	return &fixture{srv: srv, mgr: mgr, api: c}
}

func TestNew_EmptyBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New("", nil)
	require.Error(t, err)
}

func TestSignup_ThenLogin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	u, err := f.api.Signup(context.Background(), models.SignupRequest{Username: "carol", Email: "c@example.com", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "carol", u.Username)

	_, err = f.api.Signup(context.Background(), models.SignupRequest{Username: "carol", Password: "pw"})
	require.ErrorIs(t, err, ErrValidation)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "username: A user with that username already exists.", apiErr.Message())

	_, err = f.mgr.Login(context.Background(), "carol", "pw")
	require.NoError(t, err)
}

func TestProtected_WithoutSession_Unauthorized(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	_, err := f.api.Stats(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpload_Multipart_CategoriesReturned(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.srv.Categorize("dog.jpg", "Animals")

	img, err := f.api.Upload(context.Background(), "dog.jpg", strings.NewReader("\xff\xd8fake-jpeg"))
	require.NoError(t, err)
	require.NotZero(t, img.ID)
	require.Equal(t, []string{"Animals"}, img.GeneralCategories)
	require.Equal(t, "alice", img.OwnerUsername)

	img2, err := f.api.Upload(context.Background(), "misc.png", strings.NewReader("x"))
	require.NoError(t, err)
	require.Equal(t, []string{Uncategorized}, img2.GeneralCategories)
}

func TestListImages_FiltersSentAsQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.srv.SeedImage("alice", models.Image{GeneralCategories: []string{"Animals"}, DetailedLabels: []string{"golden retriever"}})
	f.srv.SeedImage("alice", models.Image{GeneralCategories: []string{"Nature"}, DetailedLabels: []string{"mountain"}})
	f.srv.SeedImage("bob", models.Image{GeneralCategories: []string{"Animals"}, DetailedLabels: []string{"cat"}})

	all, err := f.api.ListImages(context.Background(), models.ImageFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	animals, err := f.api.ListImages(context.Background(), models.ImageFilter{Category: "Animals"})
	require.NoError(t, err)
	require.Len(t, animals, 1)

	found, err := f.api.ListImages(context.Background(), models.ImageFilter{Search: "retriever"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, []string{"golden retriever"}, found[0].DetailedLabels)
}

func TestImageLifecycle_GetPatchDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	seeded := f.srv.SeedImage("alice", models.Image{GeneralCategories: []string{"Food"}})

	got, err := f.api.GetImage(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.False(t, got.IsPublic)

	got, err = f.api.SetVisibility(context.Background(), seeded.ID, true)
	require.NoError(t, err)
	require.True(t, got.IsPublic)

	pub, err := f.api.PublicImages(context.Background())
	require.NoError(t, err)
	require.Len(t, pub, 1)

	require.NoError(t, f.api.DeleteImage(context.Background(), seeded.ID))

	_, err = f.api.GetImage(context.Background(), seeded.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetImage_OtherOwner_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	bobs := f.srv.SeedImage("bob", models.Image{})

	_, err := f.api.GetImage(context.Background(), bobs.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarketplace_PurchaseFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	forSale := f.srv.SeedImage("bob", models.Image{IsPublic: true, Title: "Sunset", Price: "9.99"})
	f.srv.SeedImage("alice", models.Image{IsPublic: true})

	market, err := f.api.Marketplace(context.Background())
	require.NoError(t, err)
	require.Len(t, market, 1)
	require.Equal(t, forSale.ID, market[0].ID)

	require.NoError(t, f.api.Purchase(context.Background(), forSale.ID))

	bought, err := f.api.MyPurchases(context.Background())
	require.NoError(t, err)
	require.Len(t, bought, 1)

	market, err = f.api.Marketplace(context.Background())
	require.NoError(t, err)
	require.Empty(t, market)

	require.ErrorIs(t, f.api.Purchase(context.Background(), 9999), ErrNotFound)
}

func TestStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.srv.SeedImage("alice", models.Image{GeneralCategories: []string{"Animals"}})
	f.srv.SeedImage("alice", models.Image{GeneralCategories: []string{"Animals", "Nature"}})

	st, err := f.api.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, st.ImageCount)
	require.Equal(t, 2, st.CategoryCount)
	require.Equal(t, "March 2024", st.UserSince)
}

func TestProfile_GetPut(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	p, err := f.api.Profile(context.Background())
	require.NoError(t, err)
	require.Empty(t, p.PaymentDetails)

	_, err = f.api.UpdateProfile(context.Background(), models.Profile{PaymentDetails: "IBAN DE00"})
	require.NoError(t, err)

	p, err = f.api.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "IBAN DE00", p.PaymentDetails)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	err := f.api.ChangePassword(context.Background(), models.PasswordChangeRequest{
		OldPassword: "correctpw", NewPassword1: "a", NewPassword2: "b",
	})
	require.ErrorIs(t, err, ErrPasswordMismatch)

	err = f.api.ChangePassword(context.Background(), models.PasswordChangeRequest{
		OldPassword: "nope", NewPassword1: "n", NewPassword2: "n",
	})
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.api.ChangePassword(context.Background(), models.PasswordChangeRequest{
		OldPassword: "correctpw", NewPassword1: "newpw", NewPassword2: "newpw",
	}))

	_, err = f.mgr.Login(context.Background(), "alice", "newpw")
	require.NoError(t, err)
}

func TestDeleteAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	require.NoError(t, f.api.DeleteAccount(context.Background()))

	_, err := f.mgr.Login(context.Background(), "alice", "correctpw")
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestExpiredAccess_RefreshedTransparently(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.srv.SetAccessTTL(-time.Second)

	_, err := f.mgr.Login(context.Background(), "alice", "correctpw")
	require.NoError(t, err)
	f.srv.SetAccessTTL(time.Minute)

	_, err = f.api.Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, f.srv.RefreshCalls())
}

func TestRefreshFailure_SurfacesSessionError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.srv.SetAccessTTL(-time.Second)

	_, err := f.mgr.Login(context.Background(), "alice", "correctpw")
	require.NoError(t, err)
	f.srv.RevokeAll()

	_, err = f.api.Stats(context.Background())
	require.ErrorIs(t, err, session.ErrRefreshFailed)
	require.Equal(t, session.StateAnonymous, f.mgr.State())
}
