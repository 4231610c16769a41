package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"collabforge/internal/domain"
	"collabforge/internal/engine"
	"collabforge/internal/engine/fault"
	"collabforge/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state"`
	Message string         `json:"message" example:"a share change proposal is already outstanding"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the collab API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Collabforge API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerGallery(group, cfg.Engine)
	registerCollabs(group, cfg.Engine)
	registerShareChanges(group, cfg.Engine)
	registerMaterials(group, cfg.Engine)
	registerHistory(group, cfg.Engine)
	registerLikes(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerAuthors(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe fault.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	var ise fault.InvalidStateError
	if errors.As(err, &ise) {
		return newAPIError(http.StatusConflict, "invalid_state", err.Error(), nil)
	}
	var ve fault.ValidationError
	if errors.As(err, &ve) {
		var details map[string]any
		if ve.Field != "" {
			details = map[string]any{"field": ve.Field}
		}
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), details)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "invalid_state"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]bool{
		joinPath(basePath, "health"):         true,
		joinPath(basePath, "gallery"):        true,
		joinPath(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func joinPath(basePath, p string) string {
	full := path.Join(basePath, p)
	if !strings.HasPrefix(full, "/") {
		full = "/" + full
	}
	return full
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Collabforge API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerGallery(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "public-gallery",
		Method:      http.MethodGet,
		Path:        "/gallery",
		Summary:     "Public gallery of active collabs",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CollabResponse `json:"body"`
	}, error) {
		items, err := e.ListPublicCollabs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CollabResponse `json:"body"`
		}{Body: mapCollabs(items)}, nil
	})
}

func registerCollabs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-collab",
		Method:        http.MethodPost,
		Path:          "/collabs",
		Summary:       "Propose a collab contract",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateCollabRequest `json:"body"`
	}) (*struct {
		Body CollabResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CreateCollabOptions{
			PartnerID: input.Body.PartnerID,
			Title:     input.Body.Title,
		}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		if input.Body.ProposerShare != nil {
			opts.ProposerShare = *input.Body.ProposerShare
		}
		if input.Body.CoverURL != nil {
			opts.CoverURL = *input.Body.CoverURL
		}
		c, err := e.CreateCollab(ctx, actorID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CollabResponse `json:"body"`
		}{Body: collabResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-collabs",
		Method:      http.MethodGet,
		Path:        "/collabs",
		Summary:     "List collabs the caller is party to",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CollabResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListUserCollabs(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CollabResponse `json:"body"`
		}{Body: mapCollabViews(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-collab",
		Method:      http.MethodGet,
		Path:        "/collabs/{collab_id}",
		Summary:     "Get one collab",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CollabID string `path:"collab_id"`
	}) (*struct {
		Body CollabResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := e.GetCollabView(ctx, input.CollabID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CollabResponse `json:"body"`
		}{Body: collabViewResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-collab",
		Method:      http.MethodPatch,
		Path:        "/collabs/{collab_id}",
		Summary:     "Update collab title or description",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CollabID string              `path:"collab_id"`
		Body     UpdateCollabRequest `json:"body"`
	}) (*struct {
		Body CollabResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var c domain.Collab
		var err error
		updated := false
		if input.Body.Title != nil {
			c, err = e.UpdateCollabTitle(ctx, input.CollabID, actorID, *input.Body.Title)
			if err != nil {
				return nil, handleError(err)
			}
			updated = true
		}
		if input.Body.Description != nil {
			c, err = e.UpdateCollabDescription(ctx, input.CollabID, actorID, *input.Body.Description)
			if err != nil {
				return nil, handleError(err)
			}
			updated = true
		}
		if !updated {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title or description is required", nil)
		}
		return &struct {
			Body CollabResponse `json:"body"`
		}{Body: collabResponse(c)}, nil
	})

	type lifecycleOp struct {
		id      string
		suffix  string
		summary string
		run     func(ctx context.Context, collabID, actorID string) (domain.Collab, error)
	}
	ops := []lifecycleOp{
		{"confirm-collab", "confirm", "Confirm participation", e.ConfirmCollab},
		{"pause-collab", "pause", "Pause the collab", e.PauseCollab},
		{"resume-collab", "resume", "Resume a paused collab", e.ResumeCollab},
		{"request-delete-collab", "delete-request", "Request deletion", e.RequestDeleteCollab},
		{"confirm-delete-collab", "delete-confirm", "Confirm deletion", e.ConfirmDeleteCollab},
		{"cancel-delete-collab", "delete-cancel", "Cancel a delete request", e.CancelDeleteRequest},
	}
	for _, op := range ops {
		op := op
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        "/collabs/{collab_id}/" + op.suffix,
			Summary:     op.summary,
			Errors: []int{
				http.StatusForbidden,
				http.StatusNotFound,
				http.StatusConflict,
			},
		}, func(ctx context.Context, input *struct {
			CollabID string `path:"collab_id"`
		}) (*struct {
			Body CollabResponse `json:"body"`
		}, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			c, err := op.run(ctx, input.CollabID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body CollabResponse `json:"body"`
			}{Body: collabResponse(c)}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "reject-collab",
		Method:      http.MethodPost,
		Path:        "/collabs/{collab_id}/reject",
		Summary:     "Reject a pending invitation",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CollabID string `path:"collab_id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RejectCollab(ctx, input.CollabID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "rejected"}}, nil
	})
}

func registerShareChanges(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "request-share-change",
		Method:      http.MethodPost,
		Path:        "/collabs/{collab_id}/share-change",
		Summary:     "Propose a new revenue split",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CollabID string             `path:"collab_id"`
		Body     ShareChangeRequest `json:"body"`
	}) (*struct {
		Body CollabResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.RequestShareChange(ctx, input.CollabID, actorID, input.Body.Share)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CollabResponse `json:"body"`
		}{Body: collabResponse(c)}, nil
	})

	resolvers := []struct {
		id      string
		suffix  string
		summary string
		run     func(ctx context.Context, collabID, actorID string) (domain.Collab, error)
	}{
		{"confirm-share-change", "confirm", "Accept the proposed split", e.ConfirmShareChange},
		{"reject-share-change", "reject", "Decline the proposed split", e.RejectShareChange},
	}
	for _, op := range resolvers {
		op := op
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        "/collabs/{collab_id}/share-change/" + op.suffix,
			Summary:     op.summary,
			Errors: []int{
				http.StatusForbidden,
				http.StatusNotFound,
				http.StatusConflict,
			},
		}, func(ctx context.Context, input *struct {
			CollabID string `path:"collab_id"`
		}) (*struct {
			Body CollabResponse `json:"body"`
		}, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			c, err := op.run(ctx, input.CollabID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body CollabResponse `json:"body"`
			}{Body: collabResponse(c)}, nil
		})
	}
}

func registerMaterials(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-material",
		Method:        http.MethodPost,
		Path:          "/collabs/{collab_id}/materials",
		Summary:       "Submit a material for partner approval",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CollabID string             `path:"collab_id"`
		Body     AddMaterialRequest `json:"body"`
	}) (*struct {
		Body MaterialResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.AddMaterialOptions{Title: input.Body.Title}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		if input.Body.PreviewURL != nil {
			opts.PreviewURL = *input.Body.PreviewURL
		}
		m, err := e.AddMaterial(ctx, input.CollabID, actorID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MaterialResponse `json:"body"`
		}{Body: materialResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-materials",
		Method:      http.MethodGet,
		Path:        "/collabs/{collab_id}/materials",
		Summary:     "List materials grouped by approval state",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CollabID string `path:"collab_id"`
	}) (*struct {
		Body MaterialBoardResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		board, err := e.CollabMaterials(ctx, input.CollabID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MaterialBoardResponse `json:"body"`
		}{Body: materialBoardResponse(board)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-material",
		Method:      http.MethodPost,
		Path:        "/collabs/{collab_id}/materials/{material_id}/approve",
		Summary:     "Approve a pending material",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CollabID   string `path:"collab_id"`
		MaterialID string `path:"material_id"`
	}) (*struct {
		Body MaterialResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.ApproveMaterial(ctx, input.MaterialID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MaterialResponse `json:"body"`
		}{Body: materialResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-material",
		Method:      http.MethodPost,
		Path:        "/collabs/{collab_id}/materials/{material_id}/reject",
		Summary:     "Reject a pending material",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CollabID   string                `path:"collab_id"`
		MaterialID string                `path:"material_id"`
		Body       RejectMaterialRequest `json:"body"`
	}) (*struct {
		Body MaterialResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.RejectMaterial(ctx, input.MaterialID, actorID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MaterialResponse `json:"body"`
		}{Body: materialResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-material",
		Method:      http.MethodDelete,
		Path:        "/collabs/{collab_id}/materials/{material_id}",
		Summary:     "Delete a material",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CollabID   string `path:"collab_id"`
		MaterialID string `path:"material_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteMaterial(ctx, input.MaterialID, actorID, input.CollabID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-material-cover",
		Method:      http.MethodPost,
		Path:        "/collabs/{collab_id}/materials/{material_id}/cover",
		Summary:     "Promote an approved material to collab cover",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CollabID   string `path:"collab_id"`
		MaterialID string `path:"material_id"`
	}) (*struct {
		Body CollabResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.SetMaterialAsCover(ctx, input.MaterialID, actorID, input.CollabID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CollabResponse `json:"body"`
		}{Body: collabResponse(c)}, nil
	})
}

func registerHistory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "collab-history",
		Method:      http.MethodGet,
		Path:        "/collabs/{collab_id}/history",
		Summary:     "Full ledger for one collab, oldest first",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CollabID string `path:"collab_id"`
	}) (*struct {
		Body []HistoryEntryResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.CollabHistory(ctx, input.CollabID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []HistoryEntryResponse `json:"body"`
		}{Body: mapHistory(items)}, nil
	})
}

func registerLikes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "toggle-like",
		Method:      http.MethodPost,
		Path:        "/collabs/{collab_id}/like",
		Summary:     "Toggle the caller's like on a collab",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CollabID string `path:"collab_id"`
	}) (*struct {
		Body LikeResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		liked, count, err := e.LikeCollab(ctx, input.CollabID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LikeResponse `json:"body"`
		}{Body: LikeResponse{Liked: liked, LikesCount: count}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Notification feed for the caller",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Feed(ctx, actorID, cursorID, limit+1)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current author and notification count",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Repo.GetAuthor(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		count, err := e.NotificationsCount(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{Author: *authorResponse(&a), Notifications: count}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPatch,
		Path:        "/me",
		Summary:     "Update the caller's author profile",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body UpdateProfileRequest `json:"body"`
	}) (*struct {
		Body AuthorResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateProfile(ctx, actorID, engine.ProfileUpdate{
			DisplayName:   input.Body.DisplayName,
			AvatarURL:     input.Body.AvatarURL,
			CollabEnabled: input.Body.CollabEnabled,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AuthorResponse `json:"body"`
		}{Body: *authorResponse(&a)}, nil
	})
}

func registerAuthors(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-author",
		Method:      http.MethodGet,
		Path:        "/authors/{author_id}",
		Summary:     "Public author profile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AuthorID string `path:"author_id"`
	}) (*struct {
		Body AuthorResponse `json:"body"`
	}, error) {
		a, err := e.Repo.GetAuthor(ctx, input.AuthorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AuthorResponse `json:"body"`
		}{Body: *authorResponse(&a)}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-apikey",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Mint an API key for the caller",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, rec, err := e.MintAPIKey(ctx, actorID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{
			ID:        rec.ID,
			Name:      rec.Name,
			CreatedAt: rec.CreatedAt,
			Key:       key,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-apikeys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List the caller's API keys",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListAPIKeys(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]APIKeyResponse, 0, len(items))
		for _, k := range items {
			res = append(res, APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt})
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
