package tasks

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

// ErrInvalidCatalogue 覆盖文件校验失败
var ErrInvalidCatalogue = errors.New("invalid task catalogue")

// categoryTable 按类别分组的任务定义
type categoryTable map[model.Category][]model.TaskDefinition

// Catalogue 默认任务表加按项目类型的覆盖表
type Catalogue struct {
	defaults  categoryTable
	overrides map[model.ProjectType]categoryTable
	log       *logrus.Entry
}

// NewCatalogue 使用内置任务表；内置表中的环只记录日志
func NewCatalogue() *Catalogue {
	c := &Catalogue{
		defaults:  categoryTable{},
		overrides: map[model.ProjectType]categoryTable{},
		log:       logger.For("tasks"),
	}
	for _, t := range builtinDefaults {
		c.defaults[t.Category] = append(c.defaults[t.Category], t)
	}
	for pt, defs := range builtinOverrides {
		for _, t := range defs {
			c.addOverride(pt, t)
		}
	}

	for _, pt := range model.ProjectTypes {
		if cycle := FindCycle(c.allTasks(pt)); cycle != nil {
			c.log.WithFields(logrus.Fields{"project_type": pt, "cycle": cycle}).Warn("built-in catalogue contains a dependency cycle")
		}
	}
	return c
}

func (c *Catalogue) addOverride(pt model.ProjectType, t model.TaskDefinition) {
	if t.AppliesTo == "" {
		t.AppliesTo = pt
	}
	table, ok := c.overrides[pt]
	if !ok {
		table = categoryTable{}
		c.overrides[pt] = table
	}
	defs := table[t.Category]
	for i := range defs {
		if defs[i].ID == t.ID {
			defs[i] = t
			return
		}
	}
	table[t.Category] = append(defs, t)
}

// GetTasks 合并默认任务与类型覆盖任务：同 id 覆盖，新 id 追加，按 Order 排序
func (c *Catalogue) GetTasks(pt model.ProjectType, category model.Category) []model.TaskDefinition {
	merged := map[string]model.TaskDefinition{}
	var order []string

	for _, t := range c.defaults[category] {
		if t.AppliesTo != model.ProjectAny && t.AppliesTo != "" && t.AppliesTo != pt {
			continue
		}
		merged[t.ID] = t
		order = append(order, t.ID)
	}
	for _, t := range c.overrides[pt][category] {
		if _, exists := merged[t.ID]; !exists {
			order = append(order, t.ID)
		}
		merged[t.ID] = t
	}

	out := make([]model.TaskDefinition, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Lookup 按 id 查找任务，类型覆盖优先
func (c *Catalogue) Lookup(pt model.ProjectType, id string) (model.TaskDefinition, bool) {
	for _, defs := range c.overrides[pt] {
		for _, t := range defs {
			if t.ID == id {
				return t, true
			}
		}
	}
	for _, defs := range c.defaults {
		for _, t := range defs {
			if t.ID == id {
				return t, true
			}
		}
	}
	return model.TaskDefinition{}, false
}

// LookupFunc 返回绑定项目类型的查找函数，供 BuildExecutionPlan 使用
func (c *Catalogue) LookupFunc(pt model.ProjectType) LookupFunc {
	return func(id string) (model.TaskDefinition, bool) {
		return c.Lookup(pt, id)
	}
}

// Plan 为一个类别生成执行计划
func (c *Catalogue) Plan(pt model.ProjectType, category model.Category, done map[string]bool) []model.TaskDefinition {
	return BuildExecutionPlan(c.GetTasks(pt, category), c.LookupFunc(pt), done, c.log.WithField("category", category))
}

// allTasks 某类型下全部类别合并后的任务
func (c *Catalogue) allTasks(pt model.ProjectType) []model.TaskDefinition {
	var all []model.TaskDefinition
	for _, cat := range model.Categories {
		all = append(all, c.GetTasks(pt, cat)...)
	}
	return all
}

// catalogueFile 覆盖文件格式
type catalogueFile struct {
	Defaults  []model.TaskDefinition                       `yaml:"defaults"`
	Overrides map[model.ProjectType][]model.TaskDefinition `yaml:"overrides"`
}

// LoadFile 读取 YAML 覆盖文件并合并到内置任务表；未知依赖或依赖环会拒绝整个文件
func (c *Catalogue) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalogue file: %w", err)
	}
	return c.Load(data)
}

// Load 校验并合并 YAML 覆盖内容，失败时任务表保持不变
func (c *Catalogue) Load(data []byte) error {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalogue, err)
	}

	next := c.clone()
	for _, t := range file.Defaults {
		if err := validateDefinition(t); err != nil {
			return err
		}
		if t.AppliesTo == "" {
			t.AppliesTo = model.ProjectAny
		}
		next.replaceDefault(t)
	}
	for pt, defs := range file.Overrides {
		if !pt.Valid() {
			return fmt.Errorf("%w: unknown project type %q", ErrInvalidCatalogue, pt)
		}
		for _, t := range defs {
			if err := validateDefinition(t); err != nil {
				return err
			}
			next.addOverride(pt, t)
		}
	}

	for _, pt := range model.ProjectTypes {
		all := next.allTasks(pt)
		ids := make(map[string]bool, len(all))
		for _, t := range all {
			ids[t.ID] = true
		}
		for _, t := range all {
			for _, dep := range t.DependsOn {
				if !ids[dep] {
					return fmt.Errorf("%w: task %s (%s) depends on unknown task %s", ErrInvalidCatalogue, t.ID, pt, dep)
				}
			}
		}
		if cycle := FindCycle(all); cycle != nil {
			return fmt.Errorf("%w: dependency cycle %v for %s", ErrInvalidCatalogue, cycle, pt)
		}
	}

	c.defaults, c.overrides = next.defaults, next.overrides
	c.log.WithField("tasks", len(file.Defaults)).Info("loaded task catalogue overrides")
	return nil
}

func (c *Catalogue) replaceDefault(t model.TaskDefinition) {
	defs := c.defaults[t.Category]
	for i := range defs {
		if defs[i].ID == t.ID {
			defs[i] = t
			return
		}
	}
	c.defaults[t.Category] = append(defs, t)
}

func (c *Catalogue) clone() *Catalogue {
	next := &Catalogue{
		defaults:  categoryTable{},
		overrides: map[model.ProjectType]categoryTable{},
		log:       c.log,
	}
	for cat, defs := range c.defaults {
		next.defaults[cat] = append([]model.TaskDefinition(nil), defs...)
	}
	for pt, table := range c.overrides {
		nt := categoryTable{}
		for cat, defs := range table {
			nt[cat] = append([]model.TaskDefinition(nil), defs...)
		}
		next.overrides[pt] = nt
	}
	return next
}

func validateDefinition(t model.TaskDefinition) error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: task without id", ErrInvalidCatalogue)
	case !t.Category.Valid():
		return fmt.Errorf("%w: task %s has unknown category %q", ErrInvalidCatalogue, t.ID, t.Category)
	case t.Template == "":
		return fmt.Errorf("%w: task %s has an empty template", ErrInvalidCatalogue, t.ID)
	}
	for _, v := range t.Variables {
		switch v.Kind {
		case model.VarText, model.VarList, model.VarMap, model.VarTaskOutput:
		default:
			return fmt.Errorf("%w: task %s variable %s has unknown kind %q", ErrInvalidCatalogue, t.ID, v.Name, v.Kind)
		}
	}
	return nil
}
