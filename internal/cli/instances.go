package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var instanceHeaders = []string{"TYPE", "EXECUTABLE", "TENANT", "HEALTH", "ELEMENTS", "ACTIVATED"}

// NewInstancesCmd создаёт группу команд для просмотра inbound executables.
func NewInstancesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"inbound"},
		Short:   "Inspect active inbound connectors",
	}

	cmd.AddCommand(
		newInstancesListCmd(clientFn, outputFn),
		newInstancesGetCmd(clientFn, outputFn),
		newInstancesLogsCmd(clientFn, outputFn),
	)

	return cmd
}

func newInstancesListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List inbound connector instances grouped by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			instances, err := client.ListInstances()
			if err != nil {
				return err
			}

			out.Print(instanceHeaders, instanceRows(instances...), instances)
			return nil
		},
	}
}

func newInstancesGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "get TYPE",
		Short: "Show inbound connector instances of one type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			instances, err := client.GetInstances(args[0])
			if err != nil {
				return err
			}

			out.Print(instanceHeaders, instanceRows(*instances), instances)
			return nil
		},
	}
}

func newInstancesLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "logs TYPE EXECUTABLE_ID",
		Short: "Show the activity log of an inbound executable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			logs, err := client.GetLogs(args[0], args[1])
			if err != nil {
				return err
			}

			headers := []string{"TIMESTAMP", "SEVERITY", "TAG", "MESSAGE"}
			rows := make([][]string, len(logs))
			for i, l := range logs {
				rows[i] = []string{l.Timestamp, l.Severity, l.Tag, l.Message}
			}

			out.Print(headers, rows, logs)
			return nil
		},
	}
}

// NewClusterCmd создаёт группу команд для обзора кластера.
func NewClusterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Inspect the runtime cluster",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "instances",
		Short: "List inbound connector instances merged across all runtime nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cluster, err := client.ClusterInstances()
			if err != nil {
				return err
			}

			if len(cluster.Unreachable) > 0 {
				out.Warn("unreachable peers: " + strings.Join(cluster.Unreachable, ", "))
			}
			out.Print(instanceHeaders, instanceRows(cluster.Instances...), cluster.Instances)
			return nil
		},
	})

	return cmd
}

// NewOutboundCmd создаёт группу команд для outbound коннекторов.
func NewOutboundCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbound",
		Short: "Inspect outbound connectors",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered outbound connectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			connectors, err := client.ListOutbound()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "TYPE", "INPUT VARIABLES", "TIMEOUT"}
			rows := make([][]string, len(connectors))
			for i, c := range connectors {
				timeout := "-"
				if c.TimeoutMs > 0 {
					timeout = (time.Duration(c.TimeoutMs) * time.Millisecond).String()
				}
				rows[i] = []string{c.Name, c.Type, strings.Join(c.InputVariables, ","), timeout}
			}

			out.Print(headers, rows, connectors)
			return nil
		},
	})

	return cmd
}

func instanceRows(groups ...InstancesResponse) [][]string {
	var rows [][]string
	for _, g := range groups {
		for _, inst := range g.Instances {
			elements := make([]string, len(inst.Elements))
			for i, el := range inst.Elements {
				elements[i] = el.BpmnProcessID + "/" + el.ElementID + " v" + strconv.Itoa(el.Version)
			}
			rows = append(rows, []string{
				g.ConnectorID,
				inst.ExecutableID,
				inst.TenantID,
				healthString(inst.Health),
				strings.Join(elements, ","),
				activatedAt(inst.ActivationTimestamp),
			})
		}
	}
	return rows
}

func healthString(h HealthResponse) string {
	if h.Error != nil && h.Error.Message != "" {
		return fmt.Sprintf("%s (%s)", h.Status, h.Error.Message)
	}
	return h.Status
}

func activatedAt(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
