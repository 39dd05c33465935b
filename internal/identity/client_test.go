// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"

	"github.com/levelup/authflow/internal/auth"
	"github.com/levelup/authflow/internal/identity"
)

const testAPIKey = "anon-key"

// recordedRequest is what the fake service saw.
type recordedRequest struct {
	Method        string
	Path          string
	Query         map[string][]string
	APIKey        string
	Authorization string
	Body          map[string]string
}

// fakeService is a scripted GoTrue stand-in.
type fakeService struct {
	server *httptest.Server

	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string][]response
}

type response struct {
	status int
	body   string
}

func newFakeService() *fakeService {
	f := &fakeService{responses: make(map[string][]response)}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// respond queues responses for "METHOD /path". The last one repeats.
func (f *fakeService) respond(route string, responses ...response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[route] = responses
}

func (f *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		APIKey:        r.Header.Get("apikey"),
		Authorization: r.Header.Get("Authorization"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	route := r.Method + " " + r.URL.Path
	queued := f.responses[route]
	resp := response{status: http.StatusNotFound, body: `{"msg":"no route"}`}
	if len(queued) > 0 {
		resp = queued[0]
		if len(queued) > 1 {
			f.responses[route] = queued[1:]
		}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}

func (f *fakeService) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeService) count(method, path string) int {
	n := 0
	for _, r := range f.recorded() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

const tokenBody = `{"access_token":"at-1","refresh_token":"rt-1","token_type":"bearer","expires_in":3600,"expires_at":1900000000,"user":{"email":"ada@example.com"}}`

var _ = Describe("Client", func() {
	var (
		svc    *fakeService
		client *identity.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		svc = newFakeService()
		DeferCleanup(svc.server.Close)
		ctx = context.Background()

		var err error
		client, err = identity.New(identity.Config{
			URL:         svc.server.URL + "/auth/v1",
			APIKey:      testAPIKey,
			RedirectURL: "https://app.example.com/reset-password",
			Timeout:     2 * time.Second,
		}, identity.WithBackoff(func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
		}))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("New", func() {
		It("rejects a relative url", func() {
			_, err := identity.New(identity.Config{URL: "/auth/v1", APIKey: testAPIKey})
			Expect(err).To(MatchError(ContainSubstring("absolute")))
		})

		It("requires an api key", func() {
			_, err := identity.New(identity.Config{URL: svc.server.URL})
			Expect(err).To(MatchError(ContainSubstring("api key")))
		})
	})

	Describe("password recovery with PKCE", func() {
		BeforeEach(func() {
			svc.respond("POST /auth/v1/recover", response{status: http.StatusOK, body: `{}`})
			svc.respond("POST /auth/v1/token", response{status: http.StatusOK, body: tokenBody})
		})

		It("sends a challenge and exchanges the code with the matching verifier", func() {
			Expect(client.RequestPasswordReset(ctx, "ada@example.com")).To(Succeed())
			verifier := client.CodeVerifier()
			Expect(verifier).NotTo(BeEmpty())

			session, err := client.ExchangeCodeForSession(ctx, "link-code")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.AccessToken).To(Equal("at-1"))
			Expect(session.RefreshToken).To(Equal("rt-1"))
			Expect(session.UserEmail).To(Equal("ada@example.com"))
			Expect(session.ExpiresAt).To(Equal(time.Unix(1900000000, 0)))

			reqs := svc.recorded()
			Expect(reqs).To(HaveLen(2))

			recoverReq := reqs[0]
			Expect(recoverReq.APIKey).To(Equal(testAPIKey))
			Expect(recoverReq.Query["redirect_to"]).To(ConsistOf("https://app.example.com/reset-password"))
			Expect(recoverReq.Body).To(HaveKeyWithValue("email", "ada@example.com"))
			Expect(recoverReq.Body).To(HaveKeyWithValue("code_challenge_method", "s256"))
			Expect(recoverReq.Body).To(HaveKeyWithValue("code_challenge", oauth2.S256ChallengeFromVerifier(verifier)))

			exchange := reqs[1]
			Expect(exchange.Query["grant_type"]).To(ConsistOf("pkce"))
			Expect(exchange.Body).To(HaveKeyWithValue("auth_code", "link-code"))
			Expect(exchange.Body).To(HaveKeyWithValue("code_verifier", verifier))
		})

		It("consumes the verifier on exchange", func() {
			Expect(client.RequestPasswordReset(ctx, "ada@example.com")).To(Succeed())
			_, err := client.ExchangeCodeForSession(ctx, "link-code")
			Expect(err).NotTo(HaveOccurred())
			Expect(client.CodeVerifier()).To(BeEmpty())

			_, err = client.ExchangeCodeForSession(ctx, "link-code")
			var be *auth.BackendError
			Expect(errors.As(err, &be)).To(BeTrue())
			Expect(be.ErrorCode).To(Equal(identity.ErrorCodeVerifierMissing))
			Expect(svc.count(http.MethodPost, "/auth/v1/token")).To(Equal(1))
		})

		It("uses a verifier handed over from another process", func() {
			handed, err := identity.New(identity.Config{URL: svc.server.URL + "/auth/v1", APIKey: testAPIKey},
				identity.WithCodeVerifier("handed-verifier"))
			Expect(err).NotTo(HaveOccurred())

			_, err = handed.ExchangeCodeForSession(ctx, "link-code")
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.recorded()[0].Body).To(HaveKeyWithValue("code_verifier", "handed-verifier"))
		})

		It("keeps the previous verifier when the request fails", func() {
			Expect(client.RequestPasswordReset(ctx, "ada@example.com")).To(Succeed())
			first := client.CodeVerifier()

			svc.respond("POST /auth/v1/recover", response{
				status: http.StatusTooManyRequests,
				body:   `{"code":429,"error_code":"over_email_send_rate_limit","msg":"Email rate limit exceeded"}`,
			})
			err := client.RequestPasswordReset(ctx, "ada@example.com")
			Expect(err).To(HaveOccurred())
			Expect(client.CodeVerifier()).To(Equal(first))
			Expect(svc.count(http.MethodPost, "/auth/v1/recover")).To(Equal(2), "sends are never retried")
		})

		It("does not retry a failed exchange", func() {
			Expect(client.RequestPasswordReset(ctx, "ada@example.com")).To(Succeed())
			svc.respond("POST /auth/v1/token", response{
				status: http.StatusServiceUnavailable,
				body:   `{"message":"upstream unavailable"}`,
			})

			_, err := client.ExchangeCodeForSession(ctx, "link-code")
			Expect(err).To(HaveOccurred())
			Expect(svc.count(http.MethodPost, "/auth/v1/token")).To(Equal(1))
		})
	})

	Describe("error bodies", func() {
		DescribeTable("surface the service message",
			func(status int, body, wantCode, wantMessage string) {
				svc.respond("PUT /auth/v1/user", response{status: status, body: body})

				err := client.UpdatePassword(ctx, &auth.Session{AccessToken: "at-1"}, "Abcd12#$")
				var be *auth.BackendError
				Expect(errors.As(err, &be)).To(BeTrue())
				Expect(be.Status).To(Equal(status))
				Expect(be.ErrorCode).To(Equal(wantCode))
				Expect(be.Message).To(Equal(wantMessage))
			},
			Entry("current shape", http.StatusUnprocessableEntity,
				`{"code":422,"error_code":"same_password","msg":"New password should be different from the old password."}`,
				"same_password", "New password should be different from the old password."),
			Entry("oauth shape", http.StatusBadRequest,
				`{"error":"invalid_grant","error_description":"Code has expired"}`,
				"invalid_grant", "Code has expired"),
			Entry("message only", http.StatusBadRequest,
				`{"message":"Password is too weak"}`,
				"", "Password is too weak"),
			Entry("not json", http.StatusBadGateway,
				`<html>bad gateway</html>`,
				"", "Bad Gateway"),
		)

		It("carries no error code of its own", func() {
			svc.respond("PUT /auth/v1/user", response{status: http.StatusBadRequest, body: `{"msg":"nope"}`})
			err := client.UpdatePassword(ctx, &auth.Session{AccessToken: "at-1"}, "Abcd12#$")
			Expect(err).To(HaveOccurred())
			Expect(auth.ErrorCode(err)).To(BeEmpty())
		})
	})

	Describe("UpdatePassword", func() {
		It("authorises with the session token", func() {
			svc.respond("PUT /auth/v1/user", response{status: http.StatusOK, body: `{"id":"u-1"}`})

			Expect(client.UpdatePassword(ctx, &auth.Session{AccessToken: "at-1"}, "Abcd12#$")).To(Succeed())
			req := svc.recorded()[0]
			Expect(req.Authorization).To(Equal("Bearer at-1"))
			Expect(req.Body).To(HaveKeyWithValue("password", "Abcd12#$"))
		})

		It("refuses a missing session without calling the service", func() {
			Expect(client.UpdatePassword(ctx, nil, "Abcd12#$")).NotTo(Succeed())
			Expect(svc.recorded()).To(BeEmpty())
		})
	})

	Describe("best-effort calls", func() {
		It("retries token verification on server errors", func() {
			svc.respond("GET /auth/v1/user",
				response{status: http.StatusInternalServerError, body: `{"msg":"boom"}`},
				response{status: http.StatusOK, body: `{"id":"u-1"}`},
			)

			Expect(client.VerifyRecoveryToken(ctx, "legacy-token")).To(Succeed())
			Expect(svc.count(http.MethodGet, "/auth/v1/user")).To(Equal(2))
			Expect(svc.recorded()[0].Authorization).To(Equal("Bearer legacy-token"))
		})

		It("does not retry a rejected token", func() {
			svc.respond("GET /auth/v1/user", response{
				status: http.StatusUnauthorized,
				body:   `{"code":401,"error_code":"bad_jwt","msg":"invalid JWT"}`,
			})

			Expect(client.VerifyRecoveryToken(ctx, "legacy-token")).NotTo(Succeed())
			Expect(svc.count(http.MethodGet, "/auth/v1/user")).To(Equal(1))
		})

		It("gives up after the configured retries", func() {
			svc.respond("GET /auth/v1/user", response{status: http.StatusBadGateway, body: `{}`})

			Expect(client.VerifyRecoveryToken(ctx, "legacy-token")).NotTo(Succeed())
			Expect(svc.count(http.MethodGet, "/auth/v1/user")).To(Equal(3))
		})

		It("signs out with local scope", func() {
			svc.respond("POST /auth/v1/logout", response{status: http.StatusNoContent})

			Expect(client.SignOut(ctx, &auth.Session{AccessToken: "at-1"})).To(Succeed())
			req := svc.recorded()[0]
			Expect(req.Query["scope"]).To(ConsistOf("local"))
			Expect(req.Authorization).To(Equal("Bearer at-1"))
		})

		It("treats an unknown session as signed out", func() {
			svc.respond("POST /auth/v1/logout", response{status: http.StatusUnauthorized, body: `{"msg":"session not found"}`})

			Expect(client.SignOut(ctx, &auth.Session{AccessToken: "at-1"})).To(Succeed())
		})
	})

	Describe("account calls", func() {
		It("resends the signup confirmation", func() {
			svc.respond("POST /auth/v1/resend", response{status: http.StatusOK, body: `{}`})

			Expect(client.ResendConfirmationEmail(ctx, "ada@example.com")).To(Succeed())
			req := svc.recorded()[0]
			Expect(req.Body).To(Equal(map[string]string{"type": "signup", "email": "ada@example.com"}))
			Expect(req.Authorization).To(Equal("Bearer " + testAPIKey))
		})

		It("signs up without a code challenge", func() {
			svc.respond("POST /auth/v1/signup", response{status: http.StatusOK, body: `{"id":"u-1"}`})

			Expect(client.SignUp(ctx, "ada@example.com", "Abcd12#$")).To(Succeed())
			req := svc.recorded()[0]
			Expect(req.Body).NotTo(HaveKey("code_challenge"))
			Expect(client.CodeVerifier()).To(BeEmpty())
		})

		It("signs in with a password grant", func() {
			svc.respond("POST /auth/v1/token", response{status: http.StatusOK, body: tokenBody})

			session, err := client.SignInWithPassword(ctx, "ada@example.com", "Abcd12#$")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.AccessToken).To(Equal("at-1"))
			Expect(svc.recorded()[0].Query["grant_type"]).To(ConsistOf("password"))
		})
	})

	Describe("CheckVersion", func() {
		BeforeEach(func() {
			svc.respond("GET /auth/v1/health", response{
				status: http.StatusOK,
				body:   `{"version":"v2.158.1","name":"GoTrue","description":"GoTrue is a user registration and authentication API"}`,
			})
		})

		It("accepts a satisfying version", func() {
			v, err := client.CheckVersion(ctx, ">= 2.150.0")
			Expect(err).NotTo(HaveOccurred())
			Expect(v.String()).To(Equal("2.158.1"))
		})

		It("rejects an older service", func() {
			_, err := client.CheckVersion(ctx, ">= 2.160.0")
			Expect(err).To(HaveOccurred())
			Expect(auth.ErrorCode(err)).To(Equal(identity.CodeVersionUnsupported))
		})

		It("rejects a malformed constraint", func() {
			_, err := client.CheckVersion(ctx, "not a constraint")
			Expect(err).To(MatchError(ContainSubstring("constraint")))
		})

		It("reports an unhealthy service", func() {
			svc.respond("GET /auth/v1/health", response{status: http.StatusServiceUnavailable, body: `{}`})

			_, err := client.Health(ctx)
			Expect(auth.ErrorCode(err)).To(Equal(identity.CodeUnhealthy))
			Expect(svc.count(http.MethodGet, "/auth/v1/health")).To(Equal(3))
		})
	})
})
