package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mvanek/faceattend/internal/analytics"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect the attendance log",
}

var attendanceTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List people logged today",
	RunE:  runAttendanceToday,
}

var attendanceStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show attendance totals",
	RunE:  runAttendanceStats,
}

var attendanceReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show per-day attendance counts",
	RunE:  runAttendanceReport,
}

var attendancePeopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Show per-person attendance history",
	RunE:  runAttendancePeople,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceTodayCmd)
	attendanceCmd.AddCommand(attendanceStatsCmd)
	attendanceCmd.AddCommand(attendanceReportCmd)
	attendanceCmd.AddCommand(attendancePeopleCmd)

	attendanceReportCmd.Flags().Int("days", 7, "Number of days to show")
}

func runAttendanceToday(cmd *cobra.Command, args []string) error {
	ledger, err := openLedger()
	if err != nil {
		return err
	}

	names, err := ledger.Today()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("Nobody logged today")
		return nil
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runAttendanceStats(cmd *cobra.Command, args []string) error {
	ledger, err := openLedger()
	if err != nil {
		return err
	}

	stats, err := ledger.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Today:         %d (%s)\n", stats.TodayCount, strings.Join(stats.TodayNames, ", "))
	fmt.Printf("Total days:    %d\n", stats.TotalDays)
	fmt.Printf("Total records: %d\n", stats.TotalRecords)
	return nil
}

func runAttendanceReport(cmd *cobra.Command, args []string) error {
	ledger, err := openLedger()
	if err != nil {
		return err
	}
	days, _ := cmd.Flags().GetInt("days")

	daily, err := analytics.New(ledger).Daily(days)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCOUNT\tAVG CONFIDENCE\tNAMES")
	for _, d := range daily {
		fmt.Fprintf(w, "%s\t%d\t%.3f\t%s\n", d.Date, d.Count, d.AvgConfidence, strings.Join(d.Names, ", "))
	}
	return w.Flush()
}

func runAttendancePeople(cmd *cobra.Command, args []string) error {
	ledger, err := openLedger()
	if err != nil {
		return err
	}

	people, err := analytics.New(ledger).People()
	if err != nil {
		return err
	}
	if len(people) == 0 {
		fmt.Println("No attendance records")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDAYS\tRATE\tFIRST SEEN\tLAST SEEN\tAVG CONFIDENCE")
	for _, p := range people {
		fmt.Fprintf(w, "%s\t%d\t%.0f%%\t%s\t%s\t%.3f\n",
			p.Name, p.DaysPresent, p.AttendanceRate, p.FirstSeen, p.LastSeen, p.AvgConfidence)
	}
	return w.Flush()
}
