package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func depsOn(names ...string) DependsOn {
	d := DependsOn{}
	for _, n := range names {
		d[n] = Condition{Condition: ConditionStarted}
	}
	return d
}

func TestTopoSortOrder(t *testing.T) {
	m := &Manifest{Services: map[string]*Service{
		"frontend":   {Image: "f", DependsOn: depsOn("backend")},
		"backend":    {Image: "b", DependsOn: depsOn("mariadb")},
		"phpmyadmin": {Image: "p", DependsOn: depsOn("mariadb")},
		"mariadb":    {Image: "m"},
	}}

	order, err := m.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"mariadb", "backend", "frontend", "phpmyadmin"}, order)
}

func TestTopoSortCycle(t *testing.T) {
	m := &Manifest{Services: map[string]*Service{
		"a": {Image: "a", DependsOn: depsOn("b")},
		"b": {Image: "b", DependsOn: depsOn("a")},
	}}

	_, err := m.TopoSort()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestDependents(t *testing.T) {
	m := &Manifest{Services: map[string]*Service{
		"frontend": {Image: "f", DependsOn: depsOn("backend")},
		"backend":  {Image: "b", DependsOn: depsOn("mariadb")},
		"admin":    {Image: "p", DependsOn: depsOn("mariadb")},
		"mariadb":  {Image: "m"},
	}}

	rev := m.Dependents()
	assert.Equal(t, []string{"admin", "backend"}, rev["mariadb"])
	assert.Equal(t, []string{"frontend"}, rev["backend"])
	assert.Empty(t, rev["frontend"])
}
