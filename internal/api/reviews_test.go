package api

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
)

func TestCreateReviewSendsNullCommentWhenEmpty(t *testing.T) {
	var payload map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/avis", r.URL.Path)
		payload = decodeBody(t, r)
		_, _ = io.WriteString(w, `{"data":{"IDAVIS":9,"IDBILLET":100,"IDMANIF":12,"NOTEAVIS":4,"APPROUVERAVIS":0}}`)
	})

	review, err := c.CreateReview(context.Background(), ReviewRequest{TicketID: "100", EventID: "12", Rating: 4})

	require.NoError(t, err)
	require.Equal(t, Review{ID: "9", TicketID: "100", EventID: "12", Rating: 4}, review)
	require.Contains(t, payload, "COMMENTAIREAVIS")
	require.Nil(t, payload["COMMENTAIREAVIS"])
	require.Equal(t, float64(4), payload["NOTEAVIS"])
}

func TestCreateReviewValidatesRating(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected call")
	})

	_, err := c.CreateReview(context.Background(), ReviewRequest{TicketID: "100", EventID: "12", Rating: 6})

	require.Error(t, err)
	require.Equal(t, "rating must be at most 5", pkgerrors.As(err).Message())
}

func TestReviewListsAndModeration(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `[{"IDAVIS":9,"NOTEAVIS":"5","COMMENTAIREAVIS":"Super","APPROUVERAVIS":true,
			  "manifestation":{"NOMMANIF":"Nuit Electro"},"billet":{"client":{"PRENOMPERS":"Lea","NOMPERS":"Martin"}}}]`)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	byEvent, err := c.ReviewsByEvent(ctx, "12")
	require.NoError(t, err)
	require.Equal(t, []Review{{
		ID:         "9",
		EventName:  "Nuit Electro",
		AuthorName: "Lea Martin",
		Rating:     5,
		Comment:    "Super",
		Approved:   true,
	}}, byEvent)

	_, err = c.ReviewsByClient(ctx, "7")
	require.NoError(t, err)
	_, err = c.AllReviews(ctx)
	require.NoError(t, err)
	require.NoError(t, c.ApproveReview(ctx, "9"))
	require.NoError(t, c.RejectReview(ctx, "9"))
	require.NoError(t, c.DeleteReview(ctx, "9"))

	require.Equal(t, []string{
		"GET /api/v1/avis/manifestation/12",
		"GET /api/v1/avis/client/7",
		"GET /api/v1/avis",
		"POST /api/v1/avis/9/approve",
		"POST /api/v1/avis/9/reject",
		"DELETE /api/v1/avis/9",
	}, calls)
}
