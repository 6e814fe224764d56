package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viewavocats/estimia/internal/model"
)

var estimateCmd = &cobra.Command{
	Use:   `estimate "description"`,
	Short: "Estimate the fee for a single description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg, "estimate")
		if err != nil {
			return err
		}
		defer env.Close()

		urgent, _ := cmd.Flags().GetBool("urgent")
		client, _ := cmd.Flags().GetString("client")
		asJSON, _ := cmd.Flags().GetBool("json")

		req := model.ClassificationRequest{
			Description: strings.Join(args, " "),
			ClientType:  client,
			Urgency:     model.UrgencyNormal,
		}
		if urgent {
			req.Urgency = model.UrgencyUrgent
		}

		sess, _ := env.Sessions.GetOrCreate("")
		est, err := env.Pipeline.Estimate(ctx, sess, req)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(est)
		}
		formatEstimate(os.Stdout, est)
		return nil
	},
}

var advisoryText = map[model.Advisory]string{
	model.AdvisoryLowConfidence:     "Attention : l'analyse de votre question est incertaine. L'estimation peut manquer de précision.",
	model.AdvisoryNotLegal:          "Attention : votre question ne semble pas relever d'un problème juridique.",
	model.AdvisorySyntheticElements: "Les éléments spécifiques n'ont pas pu être analysés de manière optimale.",
}

func formatEstimate(w io.Writer, est *model.Estimate) {
	p := est.Price
	fmt.Fprintf(w, "Domaine     : %s\n", p.DomainLabel)
	fmt.Fprintf(w, "Prestation  : %s\n", p.ServiceLabel)
	fmt.Fprintf(w, "Estimation  : %d € HT\n", p.FinalPrice)
	fmt.Fprintf(w, "Confiance   : %.0f%%\n", est.Classification.Confidence*100)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Calcul :")
	for _, step := range p.Steps {
		fmt.Fprintf(w, "  - %s\n", step)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Analyse :")
	fmt.Fprintln(w, est.Rationale.Analysis)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s : %s\n", est.Rationale.Elements.Domain.Name, est.Rationale.Elements.Domain.Description)
	fmt.Fprintf(w, "%s : %s\n", est.Rationale.Elements.Service.Name, est.Rationale.Elements.Service.Description)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources :")
	fmt.Fprintln(w, est.Rationale.Sources)

	if est.ConsultationPrice > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Nous recommandons une consultation initiale (%d € HT) pour évaluer précisément votre situation.\n", est.ConsultationPrice)
	}
	for _, a := range est.Advisories {
		if text, ok := advisoryText[a]; ok {
			fmt.Fprintf(w, "\n%s\n", text)
		}
	}
}

func init() {
	estimateCmd.Flags().Bool("urgent", false, "apply the urgency multiplier")
	estimateCmd.Flags().String("client", model.ClientIndividual, "client type (Particulier, Entreprise)")
	estimateCmd.Flags().Bool("json", false, "print the estimate as JSON")
	rootCmd.AddCommand(estimateCmd)
}
