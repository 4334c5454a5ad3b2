// Command holidayctl queries the holiday providers from the command line
// through the same aggregation, caching and fallback logic as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/neexbeast/holiday-aggregator/internal/cache"
	"github.com/neexbeast/holiday-aggregator/internal/config"
	"github.com/neexbeast/holiday-aggregator/internal/holiday"
	"github.com/neexbeast/holiday-aggregator/internal/ratelimit"
)

type holidaysCmd struct {
	Country string `arg:"positional,required" help:"ISO 3166-1 alpha-2 country code"`
	Year    int    `arg:"-y,--year" help:"defaults to the current year"`
	Month   int    `arg:"-m,--month" help:"only holidays in this month (1-12)"`
	Type    string `arg:"-t,--type" help:"public, religious, observance or national"`
	Limit   int    `arg:"-n,--limit" help:"at most this many holidays"`
}

type countriesCmd struct{}

type searchCmd struct {
	Query   string `arg:"positional,required"`
	Country string `arg:"-c,--country" help:"search one country instead of the popular ones"`
}

type longWeekendsCmd struct {
	Country string `arg:"positional,required"`
	Year    int    `arg:"-y,--year"`
}

type nextCmd struct {
	Country string `arg:"positional" help:"omit for the next holidays worldwide"`
}

type isHolidayCmd struct {
	Country string `arg:"positional,required"`
	Date    string `arg:"positional" help:"YYYY-MM-DD, defaults to today"`
}

type statusCmd struct{}

type cliArgs struct {
	Holidays     *holidaysCmd     `arg:"subcommand:holidays" help:"list the holidays of a country"`
	Countries    *countriesCmd    `arg:"subcommand:countries" help:"list supported countries"`
	Search       *searchCmd       `arg:"subcommand:search" help:"search holidays by name or description"`
	LongWeekends *longWeekendsCmd `arg:"subcommand:long-weekends" help:"list the long weekends of a country"`
	Next         *nextCmd         `arg:"subcommand:next" help:"list upcoming holidays"`
	IsHoliday    *isHolidayCmd    `arg:"subcommand:is-holiday" help:"check whether a date is a public holiday"`
	Status       *statusCmd       `arg:"subcommand:status" help:"show provider configuration and quotas"`

	JSON    bool `arg:"--json" help:"print JSON even on a terminal"`
	Verbose bool `arg:"-v,--verbose" help:"log provider failures to stderr"`
	config.Providers
}

func (cliArgs) Description() string {
	return "holidayctl queries Nager.Date, Calendarific and Abstract API with automatic fallback."
}

func main() {
	var args cliArgs
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	settings, err := args.Settings()
	if err != nil {
		p.Fail(err.Error())
	}

	level := slog.LevelError
	if args.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	nager, calendarific, abstract := args.Clients()
	svc := holiday.NewService(holiday.Deps{
		Cache:        cache.NewMemory[[]byte](),
		Limiter:      ratelimit.NewMemory(),
		Nager:        nager,
		Calendarific: calendarific,
		Abstract:     abstract,
		Calendar:     holiday.NewOfflineCalendar(),
		Log:          log,
	}, settings)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := output{
		w:    os.Stdout,
		json: args.JSON || !term.IsTerminal(int(os.Stdout.Fd())),
		now:  time.Now(),
	}
	if err := run(ctx, &args, svc, out); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "holidayctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args *cliArgs, svc *holiday.Service, out output) error {
	switch {
	case args.Holidays != nil:
		c := args.Holidays
		resp, err := svc.HolidaysByCountry(ctx, c.Country, holiday.SearchOptions{
			Year:  c.Year,
			Month: c.Month,
			Type:  holiday.Type(strings.ToLower(c.Type)),
			Limit: c.Limit,
		})
		if err != nil {
			return err
		}
		return out.holidays(resp)

	case args.Countries != nil:
		return out.countries(svc.AvailableCountries(ctx))

	case args.Search != nil:
		resp, err := svc.SearchHolidays(ctx, args.Search.Query, args.Search.Country)
		if err != nil {
			return err
		}
		return out.holidays(resp)

	case args.LongWeekends != nil:
		resp, err := svc.LongWeekends(ctx, args.LongWeekends.Country, args.LongWeekends.Year)
		if err != nil {
			return err
		}
		return out.longWeekends(resp)

	case args.Next != nil:
		var (
			resp holiday.Response[[]holiday.Holiday]
			err  error
		)
		if args.Next.Country == "" {
			resp, err = svc.NextPublicHolidaysWorldwide(ctx)
		} else {
			resp, err = svc.NextPublicHolidays(ctx, args.Next.Country)
		}
		if err != nil {
			return err
		}
		return out.holidays(resp)

	case args.IsHoliday != nil:
		date := args.IsHoliday.Date
		if date == "" {
			date = out.now.Format(holiday.DateLayout)
		}
		ok, err := svc.IsPublicHoliday(ctx, date, args.IsHoliday.Country)
		if err != nil {
			return err
		}
		return out.isHoliday(date, strings.ToUpper(args.IsHoliday.Country), ok)

	case args.Status != nil:
		return out.status(ctx, svc, args)
	}
	return fmt.Errorf("unknown subcommand")
}

// output renders results as aligned tables on a terminal and as JSON otherwise.
type output struct {
	w    io.Writer
	json bool
	now  time.Time
}

func (o output) encode(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o output) table(header string, rows [][]string, footer string) error {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if footer != "" {
		_, err := fmt.Fprintln(o.w, footer)
		return err
	}
	return nil
}

func source[T any](resp holiday.Response[T], count int) string {
	s := fmt.Sprintf("%d from %s", count, resp.Provider)
	if resp.RateLimit != nil {
		s += fmt.Sprintf(", %s requests left", humanize.Comma(int64(resp.RateLimit.Remaining)))
	}
	return s
}

// relative describes a YYYY-MM-DD date relative to o.now.
func (o output) relative(date string) string {
	d, err := time.Parse(holiday.DateLayout, date)
	if err != nil {
		return ""
	}
	today := time.Date(o.now.Year(), o.now.Month(), o.now.Day(), 0, 0, 0, 0, time.UTC)
	if d.Equal(today) {
		return "today"
	}
	return humanize.RelTime(d, today, "ago", "from now")
}

func (o output) holidays(resp holiday.Response[[]holiday.Holiday]) error {
	if o.json {
		return o.encode(resp)
	}
	rows := make([][]string, 0, len(resp.Data))
	for _, h := range resp.Data {
		rows = append(rows, []string{h.Date, o.relative(h.Date), h.Name, h.LocalName, string(h.Type), h.CountryCode})
	}
	return o.table("DATE\tWHEN\tNAME\tLOCAL NAME\tTYPE\tCOUNTRY", rows, source(resp, len(resp.Data)))
}

func (o output) countries(resp holiday.Response[[]holiday.Country]) error {
	if o.json {
		return o.encode(resp)
	}
	rows := make([][]string, 0, len(resp.Data))
	for _, c := range resp.Data {
		rows = append(rows, []string{c.Code, c.Flag, c.Name})
	}
	return o.table("CODE\tFLAG\tNAME", rows, source(resp, len(resp.Data)))
}

func (o output) longWeekends(resp holiday.Response[[]holiday.LongWeekend]) error {
	if o.json {
		return o.encode(resp)
	}
	rows := make([][]string, 0, len(resp.Data))
	for _, lw := range resp.Data {
		bridge := ""
		if lw.NeedBridgeDay {
			bridge = "bridge day"
		}
		rows = append(rows, []string{lw.StartDate, lw.EndDate, fmt.Sprintf("%d days", lw.DayCount), bridge})
	}
	return o.table("START\tEND\tLENGTH\t", rows, source(resp, len(resp.Data)))
}

func (o output) isHoliday(date, country string, ok bool) error {
	if o.json {
		return o.encode(map[string]any{"date": date, "countryCode": country, "isPublicHoliday": ok})
	}
	verdict := "is not"
	if ok {
		verdict = "is"
	}
	_, err := fmt.Fprintf(o.w, "%s %s a public holiday in %s\n", date, verdict, holiday.CountryName(country))
	return err
}

func (o output) status(ctx context.Context, svc *holiday.Service, args *cliArgs) error {
	settings, err := args.Settings()
	if err != nil {
		return err
	}
	enabled := map[holiday.Provider]bool{
		holiday.NagerDate:    true,
		holiday.Calendarific: args.CalendarificAPIKey != "",
		holiday.Abstract:     args.AbstractAPIKey != "",
	}

	statuses := make([]holiday.RateLimitStatus, 0, len(holiday.Providers))
	rows := make([][]string, 0, len(holiday.Providers))
	for _, p := range holiday.Providers {
		st := svc.RateLimitStatus(ctx, p)
		statuses = append(statuses, st)

		role := "fallback"
		if p == settings.Primary {
			role = "primary"
		}
		resets := "-"
		if st.ResetTime != nil {
			resets = humanize.RelTime(*st.ResetTime, o.now, "ago", "from now")
		}
		rows = append(rows, []string{
			p.Name(), role, fmt.Sprint(enabled[p]),
			humanize.Comma(int64(st.MaxRequests)), humanize.Comma(int64(st.Remaining)), resets,
		})
	}

	if o.json {
		return o.encode(statuses)
	}
	return o.table("PROVIDER\tROLE\tENABLED\tQUOTA\tREMAINING\tRESETS", rows, "policy: "+string(settings.Policy))
}
