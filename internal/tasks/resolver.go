package tasks

import (
	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/model"
)

// LookupFunc 按 id 查找不在请求列表中的依赖任务
type LookupFunc func(id string) (model.TaskDefinition, bool)

// BuildExecutionPlan 深度优先拓扑排序：依赖先于任务输出，已输出的任务跳过。
// 环上的回边只记录日志并丢弃，保证每个请求的任务都出现在计划中。
// done 中的任务视为已执行（例如前序类别已跑过），既不重复输出也不阻塞依赖方。
func BuildExecutionPlan(tasks []model.TaskDefinition, lookup LookupFunc, done map[string]bool, log *logrus.Entry) []model.TaskDefinition {
	byID := make(map[string]model.TaskDefinition, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	const (
		visiting = 1
		emitted  = 2
	)
	state := map[string]int{}
	plan := make([]model.TaskDefinition, 0, len(tasks))

	var visit func(t model.TaskDefinition, path []string)
	visit = func(t model.TaskDefinition, path []string) {
		state[t.ID] = visiting
		path = append(path, t.ID)

		for _, depID := range t.DependsOn {
			if done[depID] {
				continue
			}
			switch state[depID] {
			case emitted:
				continue
			case visiting:
				if log != nil {
					log.WithFields(logrus.Fields{
						"task_id":    t.ID,
						"depends_on": depID,
						"path":       append(path, depID),
					}).Warn("dependency cycle detected, dropping edge")
				}
				continue
			}

			dep, ok := byID[depID]
			if !ok && lookup != nil {
				dep, ok = lookup(depID)
			}
			if !ok {
				if log != nil {
					log.WithFields(logrus.Fields{"task_id": t.ID, "depends_on": depID}).Warn("unknown dependency ignored")
				}
				continue
			}
			visit(dep, path)
		}

		state[t.ID] = emitted
		plan = append(plan, t)
	}

	for _, t := range tasks {
		if done[t.ID] || state[t.ID] == emitted {
			continue
		}
		visit(t, nil)
	}
	return plan
}

// FindCycle 返回任务集合中的一个依赖环（按路径顺序），无环时返回 nil
func FindCycle(tasks []model.TaskDefinition) []string {
	byID := make(map[string]model.TaskDefinition, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	state := map[string]int{}
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = 1
		stack = append(stack, id)
		for _, dep := range byID[id].DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			switch state[dep] {
			case 1:
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]string{}, stack[i:]...), dep)
						break
					}
				}
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = 2
		return false
	}

	for _, t := range tasks {
		if state[t.ID] == 0 && visit(t.ID) {
			return cycle
		}
	}
	return nil
}
