package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/viewavocats/estimia/internal/antispam"
	"github.com/viewavocats/estimia/internal/pipeline"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind           string `json:"kind"`
	Reason         string `json:"reason,omitempty"`
	Policy         string `json:"policy,omitempty"`
	Message        string `json:"message"`
	RetryAfterSecs int    `json:"retry_after_secs,omitempty"`
}

// writeError renders a pipeline failure. Unknown errors become a 500 with
// no detail.
func writeError(w http.ResponseWriter, err error) {
	f, ok := pipeline.AsFailure(err)
	if !ok {
		zap.L().Error("api: unexpected error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Kind:    "internal",
			Message: "Une erreur inattendue s'est produite. Veuillez réessayer plus tard.",
		}})
		return
	}

	detail := errorDetail{
		Kind:    f.Kind(),
		Reason:  f.Reason(),
		Policy:  string(f.Policy()),
		Message: userMessage(f),
	}
	status := statusFor(f)

	var retryAfter time.Duration
	switch e := f.(type) {
	case *pipeline.RateLimitError:
		retryAfter = e.RetryAfter
	case *pipeline.SpamError:
		retryAfter = e.RetryAfter
	}
	if retryAfter > 0 {
		secs := int(math.Ceil(retryAfter.Seconds()))
		detail.RetryAfterSecs = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	writeJSON(w, status, errorBody{Error: detail})
}

func statusFor(f pipeline.Failure) int {
	switch e := f.(type) {
	case *pipeline.InvalidRequestError:
		return http.StatusBadRequest
	case *pipeline.RateLimitError:
		return http.StatusTooManyRequests
	case *pipeline.SpamError:
		if e.Cause == antispam.ReasonTooSoon {
			return http.StatusTooManyRequests
		}
		return http.StatusUnprocessableEntity
	case *pipeline.TimeoutError:
		return http.StatusGatewayTimeout
	case *pipeline.ClassificationError:
		return http.StatusBadGateway
	case *pipeline.CatalogLookupError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(f pipeline.Failure) string {
	switch e := f.(type) {
	case *pipeline.InvalidRequestError:
		switch e.Cause {
		case pipeline.ReasonEmptyMessage:
			return "Veuillez saisir un message."
		case pipeline.ReasonInvalidEmail:
			return "L'adresse email saisie n'est pas valide."
		default:
			return "Veuillez décrire votre cas avant de demander une estimation. N'utilisez pas l'exemple fourni tel quel."
		}
	case *pipeline.RateLimitError:
		return "Vous avez atteint le nombre maximal de demandes. Veuillez réessayer plus tard."
	case *pipeline.SpamError:
		switch e.Cause {
		case antispam.ReasonTooSoon:
			return "Veuillez patienter avant d'envoyer un nouveau message."
		case antispam.ReasonBadCaptcha:
			return "La réponse à la question de vérification est incorrecte."
		default:
			return "Votre message n'a pas pu être envoyé."
		}
	case *pipeline.TimeoutError:
		return "Désolé, l'analyse a pris trop de temps. Veuillez réessayer ou nous contacter directement."
	case *pipeline.CatalogLookupError:
		return "Nous n'avons pas pu trouver un forfait précis pour cette prestation."
	default:
		return "Désolé, nous n'avons pas pu analyser votre demande. Veuillez réessayer avec plus de détails."
	}
}
