package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage enrolled people",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the enrolled people with sample statistics",
	RunE:  runPeopleList,
}

var peopleStatsCmd = &cobra.Command{
	Use:   "stats <name>",
	Short: "Show sample statistics for one person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleStats,
}

var peopleDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove an enrolled person and all their samples",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleDelete,
}

var peopleClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every enrolled person",
	RunE:  runPeopleClear,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd)
	peopleCmd.AddCommand(peopleStatsCmd)
	peopleCmd.AddCommand(peopleDeleteCmd)
	peopleCmd.AddCommand(peopleClearCmd)

	peopleClearCmd.Flags().Bool("yes", false, "Skip confirmation")
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	people := st.People()
	if len(people) == 0 {
		fmt.Println("No people enrolled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSAMPLES\tAVG QUALITY\tBEST QUALITY")
	for _, p := range people {
		stats, ok := st.PersonStats(p.Name)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\n", p.Name, stats.SampleCount, stats.AvgQuality, stats.MaxQuality)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing list: %w", err)
	}

	fmt.Printf("\n%d people, %d samples\n", st.PersonCount(), st.Count())
	return nil
}

func runPeopleStats(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	stats, ok := st.PersonStats(args[0])
	if !ok {
		return fmt.Errorf("person %q is not enrolled", args[0])
	}
	fmt.Printf("Samples:       %d\n", stats.SampleCount)
	fmt.Printf("Avg quality:   %.3f\n", stats.AvgQuality)
	fmt.Printf("Best quality:  %.3f\n", stats.MaxQuality)
	fmt.Printf("Avg detection: %.3f\n", stats.AvgDetScore)
	return nil
}

func runPeopleDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	if !st.Delete(args[0]) {
		return fmt.Errorf("person %q is not enrolled", args[0])
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runPeopleClear(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return fmt.Errorf("this removes every enrolled person; re-run with --yes to confirm")
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	n := st.PersonCount()
	st.Clear()
	fmt.Printf("Removed %d people\n", n)
	return nil
}
