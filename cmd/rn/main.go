package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rinna/internal/assign"
	"rinna/internal/config"
	"rinna/internal/domain"
	"rinna/internal/queue"
	"rinna/internal/store"
	"rinna/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "rn",
	Short: "Rinna CLI",
	Long: `Rinna tracks work items through a fixed workflow, keeps prioritized
work queues, and matches work to teams by cognitive load.
- Work items: bugs, features, epics, tasks, goals, chores. They flow
  FOUND -> TRIAGED -> TO_DO -> IN_PROGRESS -> IN_TEST -> DONE -> RELEASED,
  with CANCELLED as the exit from any non-terminal state.
- Queues: ordered lists of items. Reprioritize by the default order, by
  tunable weights, or against a sprint capacity in story points.
- Units: teams with members, domain expertise and work paradigms. The
  engine scores how well a unit fits an item, spots overloaded members,
  and recommends rebalancing moves.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RINNA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(unitCmd())
}

// app bundles the composition root: config, stores and the engines built
// on top of them, plus the state file they are persisted to.
type app struct {
	cfg       *config.Config
	mem       *store.Memory
	queues    *queue.Service
	engine    *assign.Engine
	units     *assign.UnitService
	statePath string
}

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(filepath.Join(workspace, "rinna.yml"))
	if err != nil {
		return err
	}
	mem := store.NewMemory(time.Now)
	statePath := filepath.Join(workspace, ".rinna", "state.json")
	if err := mem.LoadFile(statePath); err != nil {
		return err
	}
	engine := assign.NewEngine(mem.Units, mem.Items, mem.Assignments, cfg)
	a := &app{
		cfg:       cfg,
		mem:       mem,
		queues:    queue.NewService(mem.Queues, mem.Items, mem.Metadata, cfg),
		engine:    engine,
		units:     assign.NewUnitService(mem.Units, mem.Assignments, engine),
		statePath: statePath,
	}
	if _, err := a.queues.EnsureDefaultQueue(ctx); err != nil {
		return err
	}
	if err := fn(ctx, a); err != nil {
		return err
	}
	return mem.SaveFile(statePath)
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect engine config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default rinna.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(viper.GetString("workspace"), "rinna.yml")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			data, err := config.Default().ToYAML()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return printJSONOrTable(a.cfg)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(filepath.Join(viper.GetString("workspace"), "rinna.yml"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func submitCmd() *cobra.Command {
	sub := &cobra.Command{
		Use:   "submit",
		Short: "Submit work into the default queue",
	}
	sub.AddCommand(submitIncidentCmd())
	sub.AddCommand(submitFeatureCmd())
	sub.AddCommand(submitTaskCmd())
	sub.AddCommand(submitChildCmd())
	return sub
}

func submitIncidentCmd() *cobra.Command {
	var title, desc string
	cmd := &cobra.Command{
		Use:   "incident",
		Short: "Submit a production incident (urgent HIGH bug)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				item, err := a.queues.SubmitIncident(ctx, title, desc)
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func submitFeatureCmd() *cobra.Command {
	var title, desc, priority string
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Submit a feature request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				item, err := a.queues.SubmitFeatureRequest(ctx, title, desc, domain.Priority(priority))
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (LOW, MEDIUM, HIGH, CRITICAL)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func submitTaskCmd() *cobra.Command {
	var title, desc, priority string
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Submit a technical task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				item, err := a.queues.SubmitTechnicalTask(ctx, title, desc, domain.Priority(priority))
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (LOW, MEDIUM, HIGH, CRITICAL)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func submitChildCmd() *cobra.Command {
	var title, desc, itemType, priority, parent string
	cmd := &cobra.Command{
		Use:   "child",
		Short: "Submit a child work item under a parent",
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := uuid.Parse(parent)
			if err != nil {
				return fmt.Errorf("invalid parent id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				item, err := a.queues.SubmitChildWorkItem(ctx, title, domain.WorkItemType(itemType), parentID, desc, domain.Priority(priority))
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&itemType, "type", "TASK", "child item type")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (defaults to the parent's)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent work item id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("parent")
	return cmd
}

func queueCmd() *cobra.Command {
	q := &cobra.Command{Use: "queue", Short: "Manage work queues"}
	q.AddCommand(queueListCmd())
	q.AddCommand(queueItemsCmd())
	q.AddCommand(queueNextCmd())
	q.AddCommand(queueReprioritizeCmd())
	q.AddCommand(queueActivateCmd(true))
	q.AddCommand(queueActivateCmd(false))
	return q
}

// resolveQueue maps the --queue flag to a queue id, defaulting to the
// default queue when the flag is empty.
func resolveQueue(ctx context.Context, a *app, flag string) (uuid.UUID, error) {
	if flag == "" {
		q, err := a.queues.DefaultQueue(ctx)
		if err != nil {
			return uuid.Nil, err
		}
		return q.ID, nil
	}
	id, err := uuid.Parse(flag)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid queue id: %w", err)
	}
	return id, nil
}

func queueListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				var queues []domain.WorkQueue
				var err error
				if activeOnly {
					queues, err = a.queues.ActiveQueues(ctx)
				} else {
					queues, err = a.queues.Queues(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(queues)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Active", "Items"})
				for _, q := range queues {
					tw.AppendRow(table.Row{q.ID, q.Name, q.Active, len(q.ItemIDs)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active queues")
	return cmd
}

func queueItemsCmd() *cobra.Command {
	var queueFlag, itemType, state, priority, assignee string
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List queue items in queue order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				queueID, err := resolveQueue(ctx, a, queueFlag)
				if err != nil {
					return err
				}
				var items []domain.WorkItem
				switch {
				case itemType != "":
					items, err = a.queues.ItemsByType(ctx, queueID, domain.WorkItemType(itemType))
				case state != "":
					items, err = a.queues.ItemsByState(ctx, queueID, domain.WorkflowState(state))
				case priority != "":
					items, err = a.queues.ItemsByPriority(ctx, queueID, domain.Priority(priority))
				case assignee != "":
					items, err = a.queues.ItemsByAssignee(ctx, queueID, assignee)
				default:
					items, err = a.queues.Items(ctx, queueID)
				}
				if err != nil {
					return err
				}
				return printItems(ctx, a, items)
			})
		},
	}
	cmd.Flags().StringVar(&queueFlag, "queue", "", "queue id (defaults to the default queue)")
	cmd.Flags().StringVar(&itemType, "type", "", "type filter")
	cmd.Flags().StringVar(&state, "state", "", "workflow state filter")
	cmd.Flags().StringVar(&priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee filter")
	return cmd
}

func queueNextCmd() *cobra.Command {
	var queueFlag string
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the item at the head of the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				queueID, err := resolveQueue(ctx, a, queueFlag)
				if err != nil {
					return err
				}
				item, ok, err := a.queues.NextItem(ctx, queueID)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("queue is empty")
					return nil
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&queueFlag, "queue", "", "queue id (defaults to the default queue)")
	return cmd
}

func queueReprioritizeCmd() *cobra.Command {
	var queueFlag string
	var capacity int
	var priorityW, typeW, ageW, urgentW int
	cmd := &cobra.Command{
		Use:   "reprioritize",
		Short: "Re-sort a queue (default, weighted, or capacity-bounded)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				queueID, err := resolveQueue(ctx, a, queueFlag)
				if err != nil {
					return err
				}
				switch {
				case cmd.Flags().Changed("capacity"):
					err = a.queues.ReprioritizeByCapacity(ctx, queueID, capacity)
				case weightsChanged(cmd):
					weights := map[string]int{}
					if cmd.Flags().Changed("priority-weight") {
						weights[queue.WeightPriority] = priorityW
					}
					if cmd.Flags().Changed("type-weight") {
						weights[queue.WeightType] = typeW
					}
					if cmd.Flags().Changed("age-weight") {
						weights[queue.WeightAge] = ageW
					}
					if cmd.Flags().Changed("urgent-weight") {
						weights[queue.WeightUrgent] = urgentW
					}
					err = a.queues.ReprioritizeWeighted(ctx, queueID, weights)
				default:
					err = a.queues.Reprioritize(ctx, queueID)
				}
				if err != nil {
					return err
				}
				items, err := a.queues.Items(ctx, queueID)
				if err != nil {
					return err
				}
				return printItems(ctx, a, items)
			})
		},
	}
	cmd.Flags().StringVar(&queueFlag, "queue", "", "queue id (defaults to the default queue)")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "team capacity in story points")
	cmd.Flags().IntVar(&priorityW, "priority-weight", 0, "priority weight")
	cmd.Flags().IntVar(&typeW, "type-weight", 0, "type weight")
	cmd.Flags().IntVar(&ageW, "age-weight", 0, "age weight")
	cmd.Flags().IntVar(&urgentW, "urgent-weight", 0, "urgency weight")
	return cmd
}

func weightsChanged(cmd *cobra.Command) bool {
	for _, name := range []string{"priority-weight", "type-weight", "age-weight", "urgent-weight"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func queueActivateCmd(activate bool) *cobra.Command {
	use, short := "activate <id>", "Activate a queue"
	if !activate {
		use, short = "deactivate <id>", "Deactivate a queue (contents retained)"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid queue id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if activate {
					return a.queues.Activate(ctx, queueID)
				}
				return a.queues.Deactivate(ctx, queueID)
			})
		},
	}
	return cmd
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{Use: "item", Short: "Manage work items"}
	item.AddCommand(itemShowCmd())
	item.AddCommand(itemTransitionCmd())
	item.AddCommand(itemUrgentCmd())
	item.AddCommand(itemPointsCmd())
	return item
}

func itemShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a work item with its metadata and next states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				item, err := a.mem.Items.FindByID(ctx, itemID)
				if err != nil {
					return err
				}
				meta, err := a.mem.Metadata.FindByItem(ctx, itemID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"item":        item,
					"metadata":    meta,
					"next_states": workflow.AvailableTransitions(item.Status),
				})
			})
		},
	}
	return cmd
}

func itemTransitionCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "transition <id>",
		Short: "Move a work item to a new workflow state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				item, err := a.mem.Items.FindByID(ctx, itemID)
				if err != nil {
					return err
				}
				updated, err := workflow.Transition(item, domain.WorkflowState(to), time.Now().UTC())
				if err != nil {
					var ite *workflow.InvalidTransitionError
					if errors.As(err, &ite) {
						return fmt.Errorf("%w (available: %v)", err, workflow.AvailableTransitions(item.Status))
					}
					return err
				}
				if _, err := a.mem.Items.Save(ctx, updated); err != nil {
					return err
				}
				return printJSONOrTable(updated)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target workflow state")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func itemUrgentCmd() *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "urgent <id>",
		Short: "Flag an item urgent (reprioritizes the default queue)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return a.queues.SetUrgent(ctx, itemID, !unset)
			})
		},
	}
	cmd.Flags().BoolVar(&unset, "clear", false, "clear the urgent flag instead")
	return cmd
}

func itemPointsCmd() *cobra.Command {
	var points int
	cmd := &cobra.Command{
		Use:   "points <id>",
		Short: "Set an item's story point estimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				return a.queues.SetStoryPoints(ctx, itemID, points)
			})
		},
	}
	cmd.Flags().IntVar(&points, "points", 1, "story points")
	_ = cmd.MarkFlagRequired("points")
	return cmd
}

func unitCmd() *cobra.Command {
	unit := &cobra.Command{Use: "unit", Short: "Manage organizational units"}
	unit.AddCommand(unitCreateCmd())
	unit.AddCommand(unitListCmd())
	unit.AddCommand(unitMemberCmd())
	unit.AddCommand(unitAssignCmd())
	unit.AddCommand(unitSuggestCmd())
	unit.AddCommand(unitRisksCmd())
	unit.AddCommand(unitRebalanceCmd())
	return unit
}

func unitCreateCmd() *cobra.Command {
	var name, desc, unitType string
	var members, expertise, paradigms []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an organizational unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				req := domain.OrganizationalUnitCreateRequest{
					Name:        name,
					Description: desc,
					Type:        domain.UnitType(unitType),
					Members:     members,
				}
				for _, e := range expertise {
					req.DomainExpertise = append(req.DomainExpertise, domain.CynefinDomain(e))
				}
				for _, p := range paradigms {
					req.WorkParadigms = append(req.WorkParadigms, domain.WorkParadigm(p))
				}
				unit, err := a.units.CreateUnit(ctx, req)
				if err != nil {
					return err
				}
				return printJSONOrTable(unit)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "unit name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&unitType, "type", "TEAM", "unit type (TEAM, SQUAD, DEPARTMENT, BUSINESS_UNIT)")
	cmd.Flags().StringArrayVar(&members, "member", []string{}, "member id (repeatable)")
	cmd.Flags().StringArrayVar(&expertise, "expertise", []string{}, "domain expertise (repeatable)")
	cmd.Flags().StringArrayVar(&paradigms, "paradigm", []string{}, "work paradigm (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func unitListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List units with load figures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				units, err := a.units.Units(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(units)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Members", "Load", "Capacity"})
				for _, u := range units {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Type, len(u.Members), u.CurrentLoad, u.CognitiveCapacity})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func unitMemberCmd() *cobra.Command {
	var member string
	var remove bool
	cmd := &cobra.Command{
		Use:   "member <unit-id>",
		Short: "Add or remove a unit member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unitID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid unit id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				var unit domain.OrganizationalUnit
				if remove {
					unit, err = a.units.RemoveMember(ctx, unitID, member)
				} else {
					unit, err = a.units.AddMember(ctx, unitID, member)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(unit)
			})
		},
	}
	cmd.Flags().StringVar(&member, "id", "", "member id")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove instead of add")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func unitAssignCmd() *cobra.Command {
	var itemFlag, member string
	cmd := &cobra.Command{
		Use:   "assign <unit-id>",
		Short: "Assign a work item to a unit, optionally to a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unitID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid unit id: %w", err)
			}
			itemID, err := uuid.Parse(itemFlag)
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				target := member
				if target == "" && cmd.Flags().Changed("auto") {
					item, err := a.mem.Items.FindByID(ctx, itemID)
					if err != nil {
						return err
					}
					target, err = a.engine.SuggestMemberForItem(ctx, unitID, item)
					if err != nil {
						return err
					}
				}
				if err := a.units.AssignWorkItem(ctx, unitID, itemID, target); err != nil {
					return err
				}
				unit, err := a.units.FindUnit(ctx, unitID)
				if err != nil {
					return err
				}
				return printJSONOrTable(unit)
			})
		},
	}
	cmd.Flags().StringVar(&itemFlag, "item", "", "work item id")
	cmd.Flags().StringVar(&member, "member", "", "member id")
	cmd.Flags().Bool("auto", false, "pick the least loaded member")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func unitSuggestCmd() *cobra.Command {
	var itemFlag string
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Rank units by suitability for a work item",
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := uuid.Parse(itemFlag)
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				item, err := a.mem.Items.FindByID(ctx, itemID)
				if err != nil {
					return err
				}
				suggestions, err := a.engine.SuggestUnitsForItem(ctx, item)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(suggestions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Score", "Unit", "Type", "Load", "Capacity"})
				for _, s := range suggestions {
					tw.AppendRow(table.Row{s.Score, s.Unit.Name, s.Unit.Type, s.Unit.CurrentLoad, s.Unit.CognitiveCapacity})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&itemFlag, "item", "", "work item id")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func unitRisksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risks [unit-id]",
		Short: "Show member overload risks, for one unit or across all units",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				var risks []assign.OverloadRisk
				var err error
				if len(args) == 1 {
					unitID, perr := uuid.Parse(args[0])
					if perr != nil {
						return fmt.Errorf("invalid unit id: %w", perr)
					}
					risks, err = a.engine.UnitOverloadRisks(ctx, unitID)
				} else {
					risks, err = a.engine.IdentifyOverloadRisks(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(risks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Unit", "Member", "Severity", "Load", "Capacity", "Util %", "Action"})
				for _, r := range risks {
					tw.AppendRow(table.Row{r.UnitName, r.MemberID, r.Severity, r.CurrentLoad, r.Capacity, fmt.Sprintf("%.0f", r.UtilizationPercent), r.RecommendedAction})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func unitRebalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Recommend reassignments that relieve overloaded members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				recs, err := a.engine.GenerateReassignmentRecommendations(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(recs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Item", "From member", "To unit", "To member", "Improvement"})
				for _, r := range recs {
					tw.AppendRow(table.Row{r.Item.Title, r.FromMember, r.ToUnitName, r.ToMember, r.Improvement})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

// --- helpers ---

func printItems(ctx context.Context, a *app, items []domain.WorkItem) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Type", "Priority", "Status", "Urgent", "Points"})
	for _, item := range items {
		urgent, err := a.queues.IsUrgent(ctx, item.ID)
		if err != nil {
			return err
		}
		points, err := a.queues.StoryPoints(ctx, item.ID)
		if err != nil {
			return err
		}
		tw.AppendRow(table.Row{item.ID, item.Title, item.Type, item.Priority, item.Status, urgent, points})
	}
	tw.Render()
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
