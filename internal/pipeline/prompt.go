package pipeline

import (
	"fmt"
	"strings"

	"github.com/viewavocats/estimia/internal/catalog"
	"github.com/viewavocats/estimia/internal/model"
)

// DefaultSystemPrompt is used when no system prompt file is configured.
const DefaultSystemPrompt = `Tu es Estim'IA, l'assistant juridique virtuel du cabinet View Avocats.
Tu aides les particuliers et les entreprises à identifier le domaine du droit dont relève leur situation et la prestation du cabinet la plus adaptée, choisie uniquement parmi le catalogue fourni.
Tu réponds en français, de façon concise et professionnelle. Tu ne donnes pas d'avis juridique définitif et tu n'inventes ni domaine ni prestation.
Tu respectes strictement le format de réponse demandé, en particulier lorsqu'un JSON est exigé.`

// ExampleDescription is the placeholder shown in the estimate form. Submitting
// it unchanged is rejected.
const ExampleDescription = "Exemple : Mon voisin a construit une extension de sa maison qui empiète de 50 cm sur mon terrain. J'ai essayé de lui en parler à l'amiable, mais il refuse de reconnaître le problème. Je souhaite connaître mes droits et les démarches possibles pour résoudre cette situation, si possible sans aller jusqu'au procès."

const classifyPromptTemplate = `Analysez la question suivante et déterminez si elle concerne un problème juridique. Si c'est le cas, identifiez le domaine juridique et la prestation la plus pertinente.

Question : %s
Type de client : %s
Degré d'urgence : %s

Options de domaines et prestations (identifiants) :
%s

Répondez uniquement avec un objet JSON strict au format suivant :
{
    "est_juridique": true/false,
    "domaine": "identifiant du domaine juridique",
    "prestation": "identifiant de la prestation (pas le libellé)",
    "explication": "Brève explication de votre analyse",
    "indice_confiance": 0.0 à 1.0
}`

const rationalePromptTemplate = `En tant qu'assistant juridique virtuel pour View Avocats, analysez la question suivante et expliquez votre raisonnement pour le choix du domaine juridique et de la prestation.

Question : %s
Type de client : %s
Degré d'urgence : %s
Domaine recommandé : %s
Prestation recommandée : %s

Structurez votre réponse en trois parties clairement séparées par des lignes vides :

1. Analyse détaillée :
Fournissez une analyse concise mais détaillée du cas, en tenant compte du type de client et du degré d'urgence.

2. Éléments spécifiques utilisés (format JSON strict) :
{"domaine": {"nom": "nom_du_domaine", "description": "description_du_domaine"}, "prestation": {"nom": "nom_de_la_prestation", "description": "description_de_la_prestation"}}

3. Sources d'information :
Listez les sources d'information utilisées pour cette analyse, si applicable.

Assurez-vous que chaque partie est clairement séparée et que le JSON dans la partie 2 est valide et strict.`

func classifyPrompt(req model.ClassificationRequest, cat *catalog.Catalog) string {
	return fmt.Sprintf(classifyPromptTemplate,
		req.Description,
		req.ClientType,
		req.Urgency,
		strings.Join(cat.Options(), "\n"),
	)
}

func rationalePrompt(req model.ClassificationRequest, cls model.ClassificationResult) string {
	return fmt.Sprintf(rationalePromptTemplate,
		req.Description,
		req.ClientType,
		req.Urgency,
		cls.DomainID,
		cls.ServiceID,
	)
}
